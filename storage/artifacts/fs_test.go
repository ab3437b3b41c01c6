package artifacts_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizmaster/backend/storage/artifacts"
)

func TestCheckFilename(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"users_20240510_180000.csv", false},
		{"", true},
		{".hidden.csv", true},
		{"../secrets.csv", true},
		{"exports/users.csv", true},
		{`exports\users.csv`, true},
		{"..", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := artifacts.CheckFilename(tt.name)
			if tt.wantErr {
				assert.Equal(t, artifacts.ErrInvalidFilename, errors.Cause(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFSStore(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "exports")
	store, err := artifacts.NewFSStore(dir)
	require.NoError(t, err)

	loc, err := store.Put(ctx, "users.csv", []byte("id,username\n1,ann\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "users.csv"), loc)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	rc, err := store.Open(ctx, "users.csv")
	require.NoError(t, err)
	content, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "id,username\n1,ann\n", string(content))

	url, err := store.URL(ctx, "users.csv")
	require.NoError(t, err)
	assert.Equal(t, "/v1/exports/users.csv", url)

	_, err = store.Open(ctx, "missing.csv")
	assert.Equal(t, artifacts.ErrNotFound, errors.Cause(err))

	_, err = store.Put(ctx, "../escape.csv", []byte("x"))
	assert.Equal(t, artifacts.ErrInvalidFilename, errors.Cause(err))
}
