package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf).WithField("stage", "genre")

	log.Info().Str("genre", "драма").Msg("Genre created")

	var event map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "genre", event["stage"])
	assert.Equal(t, "драма", event["genre"])
	assert.Equal(t, "Genre created", event["message"])
	assert.Equal(t, "info", event["level"])
}

func TestInitWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.log")

	InitWithFile(FileOptions{Path: path, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1})
	ForWorker().Info().Msg("file sink check")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "file sink check")
	assert.Contains(t, string(data), "worker")
}

func TestComponentLoggersInitializeDefault(t *testing.T) {
	Default = nil
	log := ForStorage()
	assert.NotNil(t, log)
	assert.NotNil(t, Default)
}
