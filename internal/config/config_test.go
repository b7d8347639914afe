package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamWSURL(t *testing.T) {
	cases := []struct {
		public string
		want   string
	}{
		{"http://localhost:8000", "ws://localhost:8000/plivo/media-stream"},
		{"https://bridge.example.com", "wss://bridge.example.com/plivo/media-stream"},
		{"https://bridge.example.com/", "wss://bridge.example.com/plivo/media-stream"},
		{"bridge.example.com", "ws://bridge.example.com/plivo/media-stream"},
		{"", ""},
	}
	for _, tc := range cases {
		c := Config{PublicURL: tc.public}
		assert.Equal(t, tc.want, c.StreamWSURL(), tc.public)
	}
}

func TestLoadRejectsMistypedConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "config", "config.test.yaml"),
		[]byte("port: not-a-number\n"), 0o644))
	t.Chdir(dir)
	t.Setenv("CONFIG_ENV", "test")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateReportsMissingCredentials(t *testing.T) {
	c := Config{}
	assert.Error(t, c.Validate())

	c.LiveKit = LiveKitConfig{URL: "wss://lk.example.com", APIKey: "key", APISecret: "secret"}
	assert.Error(t, c.Validate())

	c.Plivo = PlivoConfig{AuthID: "id", AuthToken: "token", Number: "+14155552671"}
	assert.NoError(t, c.Validate())
}
