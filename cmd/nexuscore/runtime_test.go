package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexuscore/agentcore/internal/config"
	"github.com/nexuscore/agentcore/internal/security"
	"github.com/nexuscore/agentcore/internal/vault"
	"github.com/nexuscore/agentcore/pkg/models"
)

func newFingerprintTestVault(t *testing.T) (*config.Config, *vault.Vault) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Vault.BlobPath = filepath.Join(dir, "vault.enc")
	cfg.Vault.SaltPath = filepath.Join(dir, "vault.salt")

	v := vault.New(cfg.Vault.BlobPath, cfg.Vault.SaltPath)
	require.NoError(t, v.Init("test-password"))
	return cfg, v
}

func TestVerifyFingerprint_FirstBootRecordsThenMatchesOnReverify(t *testing.T) {
	cfg, v := newFingerprintTestVault(t)

	require.NoError(t, verifyFingerprint(cfg, v))
	require.NoError(t, verifyFingerprint(cfg, v))
}

func TestVerifyFingerprint_ConfigChangeAfterFirstBootFails(t *testing.T) {
	cfg, v := newFingerprintTestVault(t)
	require.NoError(t, verifyFingerprint(cfg, v))

	cfg.Policy.Mode = models.ModeAskAlways
	err := verifyFingerprint(cfg, v)
	require.Error(t, err)
}

func TestRunProcessReaper_KillsStaleEntries(t *testing.T) {
	killed := make(chan int, 1)
	reg := security.NewProcessRegistry(func(pid int) error {
		killed <- pid
		return nil
	})
	reg.MaxLifetime = time.Millisecond
	reg.Register(42, "test")

	rt := &runtime{procRegistry: reg, logger: slog.Default()}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rt.RunProcessReaper(ctx, 5*time.Millisecond)

	select {
	case pid := <-killed:
		require.Equal(t, 42, pid)
	case <-time.After(time.Second):
		t.Fatal("expected reaper to kill the stale entry")
	}
}

func TestRunProcessReaper_StopsOnContextCancel(t *testing.T) {
	reg := security.NewProcessRegistry(nil)
	rt := &runtime{procRegistry: reg, logger: slog.Default()}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		rt.RunProcessReaper(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected RunProcessReaper to return after context cancellation")
	}
}
