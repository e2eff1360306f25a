// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config tunes a Runtime. The zero value is not valid; start from
// DefaultConfig.
type Config struct {
	// MaxOpCount is the number of instructions a fiber may execute before
	// it yields to the scheduler.
	MaxOpCount int `yaml:"max_op_count"`

	// Tracing records the last TraceLength instructions of every fiber and
	// enables the per-step Supervisor callbacks.
	Tracing bool `yaml:"tracing"`

	// TraceLength is the capacity of each fiber's trace ring buffer.
	TraceLength int `yaml:"trace_length"`

	// TimerQueueCapacity bounds the request queue of the timer service.
	// It is rounded up to a power of two.
	TimerQueueCapacity int `yaml:"timer_queue_capacity"`

	// ReportFailures logs fibers that fail while nothing observes them.
	ReportFailures bool `yaml:"report_failures"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		MaxOpCount:         1024,
		Tracing:            false,
		TraceLength:        64,
		TimerQueueCapacity: 64,
		ReportFailures:     true,
	}
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	if c.MaxOpCount <= 0 {
		errs = append(errs, fmt.Errorf("max_op_count must be positive, got %d", c.MaxOpCount))
	}
	if c.TraceLength < 0 {
		errs = append(errs, fmt.Errorf("trace_length must not be negative, got %d", c.TraceLength))
	}
	if c.Tracing && c.TraceLength == 0 {
		errs = append(errs, errors.New("trace_length must be positive when tracing is enabled"))
	}
	if c.TimerQueueCapacity <= 0 {
		errs = append(errs, fmt.Errorf("timer_queue_capacity must be positive, got %d", c.TimerQueueCapacity))
	}
	return errors.Join(errs...)
}

// LoadConfig reads a YAML runtime configuration from path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses YAML runtime configuration. Fields that are absent keep
// their DefaultConfig value; unknown fields are an error. The path argument
// is used only for error messages.
func ParseConfig(data []byte, path string) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
