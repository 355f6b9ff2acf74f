package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/pressroom/pkg/observability"
)

func watchedConfig(level string) string {
	return `
database:
  driver: memory
auth:
  jwt_secret: "` + testSecret + `"
observability:
  log_level: ` + level + `
`
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := writeFile(t, watchedConfig("info"))

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)
	defer w.Close()

	changes := make(chan *Config, 4)
	w.Start(func(cfg *Config) { changes <- cfg })

	require.NoError(t, os.WriteFile(path, []byte(watchedConfig("debug")), 0o600))

	// a write can surface as several events; wait for the finished file
	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changes:
			if cfg.Observability.Level() == observability.DebugLevel {
				return
			}
		case <-deadline:
			t.Fatal("no reload after the file changed")
		}
	}
}

func TestWatcher_SkipsInvalidFile(t *testing.T) {
	path := writeFile(t, watchedConfig("info"))

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)
	defer w.Close()

	changes := make(chan *Config, 4)
	w.Start(func(cfg *Config) { changes <- cfg })

	require.NoError(t, os.WriteFile(path, []byte("database: ["), 0o600))

	select {
	case <-changes:
		t.Fatal("an unparsable file must not be delivered")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_Close(t *testing.T) {
	w, err := NewWatcher(writeFile(t, watchedConfig("info")), nil)
	require.NoError(t, err)
	w.Start(func(*Config) {})

	require.NoError(t, w.Close())
	assert.NoError(t, w.Close())

	select {
	case <-w.done:
	case <-time.After(time.Second):
		t.Fatal("watch loop did not stop")
	}
}

func TestNewWatcher_MissingDirectory(t *testing.T) {
	_, err := NewWatcher("/does/not/exist/pressroom.yaml", nil)
	assert.Error(t, err)
}
