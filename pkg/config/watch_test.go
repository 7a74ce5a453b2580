package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/bukget/pkg/observability"
)

func TestWatch_ReloadsOnChange(t *testing.T) {
	path := writeConfig(t, "observability:\n  log_level: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, func(cfg *Config) { changes <- cfg })
	}()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)

	// an invalid file is skipped
	require.NoError(t, os.WriteFile(path, []byte("server:\n  app_server: cgi\n"), 0o644))
	time.Sleep(2 * reloadDelay)
	require.NoError(t, os.WriteFile(path, []byte("observability:\n  log_level: debug\n"), 0o644))

	select {
	case cfg := <-changes:
		assert.Equal(t, observability.DebugLevel, cfg.LogLevel())
		assert.Equal(t, path, cfg.Path)
	case <-time.After(5 * time.Second):
		t.Fatal("configuration change was not delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatch_RequiresPath(t *testing.T) {
	assert.Error(t, Watch(context.Background(), "", nil, func(*Config) {}))
}
