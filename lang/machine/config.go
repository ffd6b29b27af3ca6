package machine

import "github.com/caarlos0/env/v6"

// Config carries the machine's tuning and debugging knobs. All fields can be
// set from the environment with ConfigFromEnv; the zero value (with DefaultConfig
// applied) is suitable for normal execution.
type Config struct {
	// Trace prints the operand stack and each instruction to stderr before it
	// is dispatched.
	Trace bool `env:"GOLOX_TRACE"`

	// GCStress runs a full collection before every allocation. Observable
	// program output must be identical with or without it.
	GCStress bool `env:"GOLOX_GC_STRESS"`

	// GCLog reports collection begin/end and reclaimed bytes to stderr.
	GCLog bool `env:"GOLOX_GC_LOG"`

	// GCNext is the heap size in bytes that triggers the first collection.
	// After each collection the threshold is set to twice the live size.
	GCNext int `env:"GOLOX_GC_NEXT" envDefault:"1048576"`

	// MaxFrames bounds the call-frame stack; the operand stack holds 256
	// values per frame.
	MaxFrames int `env:"GOLOX_MAX_FRAMES" envDefault:"64"`
}

// DefaultConfig returns the configuration used when the environment sets
// nothing.
func DefaultConfig() Config {
	return Config{GCNext: 1 << 20, MaxFrames: 64}
}

// ConfigFromEnv parses the configuration from GOLOX_* environment variables,
// with the documented defaults for unset ones.
func ConfigFromEnv() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, err
	}
	return c, nil
}
