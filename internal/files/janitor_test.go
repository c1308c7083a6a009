package files_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grabberapp/grabber/internal/files"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweep_RemovesOnlyExpiredFiles(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "stale.mp4")
	fresh := filepath.Join(dir, "fresh.mp4")

	require.NoError(t, os.WriteFile(stale, []byte("content"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("content"), 0o644))

	expired := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(stale, expired, expired))

	janitor := files.NewJanitor(files.JanitorConfig{OrphanTTL: time.Minute * 30, SweepInterval: time.Minute}, dir)
	janitor.Sweep()

	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
}

func TestSweep_IgnoresDirectories(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(nested, 0o755))

	expired := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(nested, expired, expired))

	janitor := files.NewJanitor(files.JanitorConfig{OrphanTTL: time.Minute, SweepInterval: time.Minute}, dir)
	janitor.Sweep()

	assert.DirExists(t, nested)
}

func TestSweep_MissingFolderIsTolerated(t *testing.T) {
	janitor := files.NewJanitor(files.JanitorConfig{OrphanTTL: time.Minute, SweepInterval: time.Minute}, filepath.Join(t.TempDir(), "missing"))
	janitor.Sweep()
}
