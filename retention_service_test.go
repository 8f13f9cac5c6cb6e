package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckgen/database"
)

func TestSweepRemovesExpiredFilesAndRows(t *testing.T) {
	ts := newTestStack(t)
	cfg := ts.cfg
	cfg.RetentionHours = 1
	svc := NewRetentionService(cfg, ts.fileService, nil, nil)

	expired := time.Now().Add(-3 * time.Hour).UnixMilli()
	seed := []struct {
		name      string
		format    string
		createdAt int64
	}{
		{"aaaa1111aaaa1111aaaa1111aaaa1111.pptx", "pptx", expired},
		{"bbbb2222bbbb2222bbbb2222bbbb2222.pdf", "pdf", expired},
		{"cccc3333cccc3333cccc3333cccc3333.pptx", "pptx", 0},
	}
	for _, s := range seed {
		_, err := ts.fileService.SaveFile(database.GeneratedFile{
			Filename:  s.name,
			Format:    s.format,
			CreatedAt: s.createdAt,
		})
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(cfg.GeneratedDir, s.name), []byte("doc"), 0644))
	}

	svc.sweep()

	for _, name := range []string{seed[0].name, seed[1].name} {
		_, err := ts.fileService.GetFileByName(name)
		assert.ErrorIs(t, err, database.ErrFileNotFound, name)
		_, err = os.Stat(filepath.Join(cfg.GeneratedDir, name))
		assert.True(t, os.IsNotExist(err), "%s should be removed from disk", name)
	}

	_, err := ts.fileService.GetFileByName(seed[2].name)
	assert.NoError(t, err, "fresh file survives the sweep")
	_, err = os.Stat(filepath.Join(cfg.GeneratedDir, seed[2].name))
	assert.NoError(t, err)
}

func TestRetentionDisabledByDefault(t *testing.T) {
	ts := newTestStack(t)
	svc := NewRetentionService(ts.cfg, ts.fileService, nil, nil)

	require.NoError(t, svc.Initialize(context.Background()))
	require.NoError(t, svc.Shutdown(), "shutdown is safe when no sweeper was started")
}

func TestRetentionLifecycle(t *testing.T) {
	ts := newTestStack(t)
	cfg := ts.cfg
	cfg.RetentionHours = 1
	svc := NewRetentionService(cfg, ts.fileService, nil, nil)

	require.NoError(t, svc.Initialize(context.Background()))
	require.NoError(t, svc.Shutdown(), "shutdown stops the sweeper and waits for it")
}
