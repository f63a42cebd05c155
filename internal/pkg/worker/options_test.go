package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_EnvRoundTrip(t *testing.T) {
	opts := Options{WorkerID: 2, Session: Session{ID: "s", User: "ana"}, LogLevel: "debug"}
	encoded, err := opts.Encode()
	require.NoError(t, err)

	t.Setenv(OptionsEnvVar, encoded)

	loaded, err := LoadOptions()
	require.NoError(t, err)
	assert.Equal(t, opts, loaded)
}

func TestLoadOptions_Missing(t *testing.T) {
	t.Setenv(OptionsEnvVar, "")

	_, err := LoadOptions()
	require.Error(t, err)
}

func TestLoadOptions_Garbage(t *testing.T) {
	t.Setenv(OptionsEnvVar, "{not json")

	_, err := LoadOptions()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode worker options")
}
