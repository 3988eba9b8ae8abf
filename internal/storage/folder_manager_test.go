package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFolderManager(t *testing.T) {
	baseDir := t.TempDir()
	fm := NewFolderManager(baseDir, zap.NewNop())

	t.Run("creates a session folder", func(t *testing.T) {
		path, err := fm.CreateSessionFolder("20260826_101500")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(baseDir, "20260826_101500"), path)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.True(t, fm.FolderExists("20260826_101500"))
	})

	t.Run("rejects an empty session id", func(t *testing.T) {
		_, err := fm.CreateSessionFolder("")
		assert.Error(t, err)
	})

	t.Run("sanitizes traversal attempts", func(t *testing.T) {
		path, err := fm.CreateSessionFolder("../../etc/passwd")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(baseDir, "etcpasswd"), path)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		_, err := fm.CreateSessionFolder("doomed")
		require.NoError(t, err)
		require.NoError(t, fm.DeleteSessionFolder("doomed"))
		assert.False(t, fm.FolderExists("doomed"))
		require.NoError(t, fm.DeleteSessionFolder("doomed"))
	})
}
