package djlog

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	charmlog "charm.land/log/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djls-go/djls/internal/config"
)

func TestNewDefaultsToInfoLevel(t *testing.T) {
	logger, closer, err := New(config.Default(), "")
	require.NoError(t, err)
	defer closer()
	assert.Equal(t, charmlog.InfoLevel, logger.GetLevel())
}

func TestNewDebugConfigSetsDebugLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Debug = true
	logger, closer, err := New(cfg, "")
	require.NoError(t, err)
	defer closer()
	assert.Equal(t, charmlog.DebugLevel, logger.GetLevel())
}

func TestNewWritesToLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "djls.log")
	logger, closer, err := New(config.Default(), path)
	require.NoError(t, err)
	logger.Info("hello")
	closer()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestComponentTagsLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := charmlog.New(&buf)
	child := Component(logger, "watcher")
	child.Info("tick")
	assert.Contains(t, buf.String(), "watcher")
}
