package worker

import (
	"encoding/json"
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// OptionsEnvVar carries the serialized boot options into a worker process
const OptionsEnvVar = "MEDIAQ_WORKER_OPTIONS"

// Options is the boot configuration a worker process is spawned with
type Options struct {
	WorkerID  int     `json:"workerId"`
	Session   Session `json:"session"`
	LogLevel  string  `json:"logLevel,omitempty"`
	LogFormat string  `json:"logFormat,omitempty"`
}

// Session identifies the user session that owns the queue
type Session struct {
	ID   string `json:"id,omitempty"`
	User string `json:"user,omitempty"`
}

// Encode serializes the options for the process environment
func (o Options) Encode() (string, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return "", fmt.Errorf("failed to encode worker options: %w", err)
	}
	return string(data), nil
}

// Decode implements envconfig.Decoder
func (o *Options) Decode(value string) error {
	if err := json.Unmarshal([]byte(value), o); err != nil {
		return fmt.Errorf("failed to decode worker options: %w", err)
	}
	return nil
}

type bootEnv struct {
	Options Options `envconfig:"WORKER_OPTIONS" required:"true"`
}

// LoadOptions reads the boot options from the environment
func LoadOptions() (Options, error) {
	var env bootEnv
	if err := envconfig.Process("mediaq", &env); err != nil {
		return Options{}, err
	}
	return env.Options, nil
}
