package models

// Database schema overview (created by the goose migrations in /migrations):
// 1. users             - accounts, Google subject and optional password
// 2. refresh_tokens    - hashed refresh cookies
// 3. profiles          - one JSON resume profile per user with a bounded history log
// 4. cvs               - CV documents with a version counter and bounded changelog
// 5. interview_sessions - practice interviews, answers, score and AI feedback
// 6. trainer_results   - one immutable row per quiz submission
// 7. audit_events      - append-only action log
// 8. deletion_requests - GDPR erase tracking, kept after the user row is gone
