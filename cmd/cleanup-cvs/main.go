// Command cleanup-cvs removes duplicate CVs, keeping each user's most recently updated
// one. It only reports by default; pass --execute to delete.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/careerhub/backend/services"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/pflag"
)

const duplicatesQuery = `
SELECT id, user_id, title, created_at, updated_at
FROM cvs
WHERE user_id IN (SELECT user_id FROM cvs GROUP BY user_id HAVING COUNT(*) > 1)
ORDER BY user_id, updated_at DESC, created_at DESC`

type cvRow struct {
	ID        string
	UserID    string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type userPlan struct {
	UserID string
	Keep   cvRow
	Delete []cvRow
}

// newer orders by updated_at, then created_at.
func newer(a, b cvRow) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// plan groups rows by user and keeps the newest CV of every user with duplicates. Users
// keep their first-seen order.
func plan(rows []cvRow) []userPlan {
	index := make(map[string]int)
	var plans []userPlan
	for _, row := range rows {
		i, ok := index[row.UserID]
		if !ok {
			index[row.UserID] = len(plans)
			plans = append(plans, userPlan{UserID: row.UserID, Keep: row})
			continue
		}
		p := &plans[i]
		if newer(row, p.Keep) {
			p.Delete = append(p.Delete, p.Keep)
			p.Keep = row
		} else {
			p.Delete = append(p.Delete, row)
		}
	}

	out := plans[:0]
	for _, p := range plans {
		if len(p.Delete) > 0 {
			out = append(out, p)
		}
	}
	return out
}

func loadDuplicates(ctx context.Context, pool *pgxpool.Pool) ([]cvRow, error) {
	rows, err := pool.Query(ctx, duplicatesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query cvs: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[cvRow])
}

func deleteCVs(ctx context.Context, pool *pgxpool.Pool, ids []string) (int64, error) {
	var deleted int64
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM cvs WHERE id = ANY($1)`, ids)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected()
		return nil
	})
	return deleted, err
}

func main() {
	execute := pflag.Bool("execute", false, "delete the duplicates instead of listing them")
	delay := pflag.Duration("countdown", 5*time.Second, "pause before deleting")
	pflag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	cfg := services.LoadConfig()
	if cfg.Database.URL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	rows, err := loadDuplicates(ctx, pool)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	plans := plan(rows)
	if len(plans) == 0 {
		fmt.Println("No duplicate CVs found.")
		return
	}

	var ids []string
	for _, p := range plans {
		fmt.Printf("User %s: keeping %q (%s, updated %s)\n", p.UserID, p.Keep.Title, p.Keep.ID, p.Keep.UpdatedAt.Format(time.RFC3339))
		for _, cv := range p.Delete {
			fmt.Printf("  delete %q (%s, updated %s)\n", cv.Title, cv.ID, cv.UpdatedAt.Format(time.RFC3339))
			ids = append(ids, cv.ID)
		}
	}

	if !*execute {
		fmt.Printf("\nDry run: %d users affected, %d CVs would be deleted. Re-run with --execute to delete.\n", len(plans), len(ids))
		return
	}

	for remaining := *delay; remaining > 0; remaining -= time.Second {
		fmt.Printf("\rDeleting %d CVs in %d s (Ctrl+C to abort)...", len(ids), int(remaining.Seconds()))
		time.Sleep(time.Second)
	}
	fmt.Println()

	deleted, err := deleteCVs(ctx, pool, ids)
	if err != nil {
		fmt.Fprintf(os.Stderr, "delete failed, nothing was removed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Summary: %d users affected, %d CVs deleted.\n", len(plans), deleted)
}
