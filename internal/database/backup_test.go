package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerformBackup(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "clinic.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("snapshot me"), 0o644))

	logger := zerolog.Nop()
	svc := NewBackupService(dbPath, BackupConfig{
		Enabled:     true,
		StoragePath: filepath.Join(dir, "backups"),
	}, &logger)

	require.NoError(t, svc.PerformBackup())

	entries, err := os.ReadDir(filepath.Join(dir, "backups"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(dir, "backups", entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, "snapshot me", string(data))
}

func TestCleanupOldBackups(t *testing.T) {
	dir := t.TempDir()
	storage := filepath.Join(dir, "backups")
	require.NoError(t, os.MkdirAll(storage, 0o755))

	stale := filepath.Join(storage, "clinicbook_20200101_000000.db")
	fresh := filepath.Join(storage, "clinicbook_now.db")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("new"), 0o644))
	old := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(stale, old, old))

	logger := zerolog.Nop()
	svc := NewBackupService(filepath.Join(dir, "clinic.db"), BackupConfig{
		Enabled:       true,
		StoragePath:   storage,
		RetentionDays: 14,
	}, &logger)

	svc.CleanupOldBackups()

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "stale backup should be removed")
	_, err = os.Stat(fresh)
	assert.NoError(t, err, "recent backup should survive")
}
