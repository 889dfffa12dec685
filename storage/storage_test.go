package storage

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSaveURLDelete(t *testing.T) {
	root := t.TempDir()
	l, err := NewLocal(root, "/media")
	require.NoError(t, err)
	ctx := context.Background()

	url, err := l.Save(ctx, "uploads/a.pdf", []byte("%PDF"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "/media/uploads/a.pdf", url)

	data, err := os.ReadFile(filepath.Join(root, "uploads", "a.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data))

	got, err := l.URL(ctx, "uploads/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, url, got)

	require.NoError(t, l.Delete(ctx, "uploads/a.pdf"))
	_, err = os.Stat(filepath.Join(root, "uploads", "a.pdf"))
	assert.True(t, os.IsNotExist(err))

	// deleting a missing object is not an error
	assert.NoError(t, l.Delete(ctx, "uploads/a.pdf"))
}

func TestLocalKeysStayInsideRoot(t *testing.T) {
	root := t.TempDir()
	l, err := NewLocal(root, "/media/")
	require.NoError(t, err)

	url, err := l.Save(context.Background(), "../../etc/passwd", []byte("x"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "/media/etc/passwd", url)
	_, err = os.Stat(filepath.Join(root, "etc", "passwd"))
	assert.NoError(t, err)

	_, err = l.Save(context.Background(), "/", []byte("x"), "text/plain")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestNewKey(t *testing.T) {
	a := NewKey("uploads", "Resume.PDF")
	b := NewKey("uploads", "Resume.PDF")
	assert.True(t, strings.HasPrefix(a, "uploads/"))
	assert.True(t, strings.HasSuffix(a, ".pdf"))
	assert.NotEqual(t, a, b)
	assert.Equal(t, "cvs/u1/cv1/v3.pdf", CVKey("u1", "cv1", 3, "pdf"))
}

func TestNewDefaultsToLocal(t *testing.T) {
	s, err := New(context.Background(), Config{Backend: "local", MediaRoot: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, s)

	_, err = New(context.Background(), Config{Backend: "s3"})
	assert.Error(t, err)
}

func TestKeyOwner(t *testing.T) {
	tests := []struct {
		key   string
		owner string
		ok    bool
	}{
		{"uploads/u1/2abc.pdf", "u1", true},
		{"cvs/u1/cv9/v3.pdf", "u1", true},
		{"/uploads/u1/a.pdf", "u1", true},
		{"uploads/u1", "", false},
		{"uploads/u1/", "", false},
		{"uploads/", "", false},
		{"", "", false},
		{"avatars/u1/a.png", "", false},
		{"uploads/../cvs/u2/x.pdf", "u2", true},
		{"../../uploads/u3/x.pdf", "u3", true},
	}
	for _, tt := range tests {
		owner, ok := KeyOwner(tt.key)
		assert.Equal(t, tt.ok, ok, tt.key)
		assert.Equal(t, tt.owner, owner, tt.key)
	}
}

func TestLocalOpenRejectsDirectories(t *testing.T) {
	l, err := NewLocal(t.TempDir(), "/media/")
	require.NoError(t, err)
	_, err = l.Save(context.Background(), "uploads/u1/a.pdf", []byte("%PDF"), "application/pdf")
	require.NoError(t, err)

	f, info, err := l.Open("uploads/u1/a.pdf")
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, "a.pdf", info.Name())
	assert.Equal(t, int64(4), info.Size())

	for _, key := range []string{"uploads", "uploads/u1", "uploads/u1/missing.pdf"} {
		_, _, err := l.Open(key)
		assert.ErrorIs(t, err, fs.ErrNotExist, key)
	}
}
