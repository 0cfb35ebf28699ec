package pipelineconfig

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ─── YAML schema ───────────────────────────────────────────────────────────

type Pipeline struct {
	Workers        int   `yaml:"workers"`   // one producer and one consumer each
	Producers      int   `yaml:"producers"` // overrides Workers when > 0
	Consumers      int   `yaml:"consumers"` // overrides Workers when > 0
	BufferSize     int   `yaml:"buffer_size"`
	Matrices       int64 `yaml:"matrices"`
	ConsumerTarget int64 `yaml:"consumer_target"` // 0 means Matrices
	MatrixMode     int   `yaml:"matrix_mode"`     // 0 random sizes, n fixed n×n
	Seed           int64 `yaml:"seed"`            // 0 seeds from the clock
}

// MaxMatrixMode caps the side of fixed size matrices.
const MaxMatrixMode = 64

// Output modes.
const (
	OutputStream   = "stream"
	OutputDeferred = "deferred"
	OutputNone     = "none"
)

type Output struct {
	Mode string `yaml:"mode"`
}

type Config struct {
	Pipeline Pipeline `yaml:"pipeline"`
	Output   Output   `yaml:"output"`
}

// ProducerCount resolves the number of producer workers.
func (p Pipeline) ProducerCount() int {
	if p.Producers > 0 {
		return p.Producers
	}
	return p.Workers
}

// ConsumerCount resolves the number of consumer workers.
func (p Pipeline) ConsumerCount() int {
	if p.Consumers > 0 {
		return p.Consumers
	}
	return p.Workers
}

// ConsumeTarget resolves how many items consumers take in total.
func (p Pipeline) ConsumeTarget() int64 {
	if p.ConsumerTarget > 0 {
		return p.ConsumerTarget
	}
	return p.Matrices
}

// ─── embedded YAML file ───────────────────────────────────────────────────

//go:embed config.yml
var raw []byte

// Load unmarshals the embedded YAML into Config.
func Load() (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadFile reads path on top of the embedded defaults; keys missing from
// the file keep their default value.
func LoadFile(path string) (*Config, error) {
	c, err := Load()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return c, nil
}

// ApplyArgs applies the positional command line overrides
// [workers [buffer_size [matrices [matrix_mode]]]].
func (c *Config) ApplyArgs(args []string) error {
	if len(args) > 4 {
		return fmt.Errorf("too many arguments: %d (at most 4)", len(args))
	}
	p := &c.Pipeline
	for i, a := range args {
		if i == 2 {
			n, err := strconv.ParseInt(a, 10, 64)
			if err != nil {
				return fmt.Errorf("argument %d (%q): %w", i+1, a, err)
			}
			p.Matrices = n
			continue
		}
		n, err := strconv.Atoi(a)
		if err != nil {
			return fmt.Errorf("argument %d (%q): %w", i+1, a, err)
		}
		switch i {
		case 0:
			p.Workers = n
			p.Producers, p.Consumers = 0, 0
		case 1:
			p.BufferSize = n
		case 3:
			p.MatrixMode = n
		}
	}
	return nil
}

// Validate reports every setting that cannot drive a run.
func (c *Config) Validate() error {
	p := c.Pipeline
	var errs []error
	if p.ProducerCount() < 1 || p.ConsumerCount() < 1 {
		errs = append(errs, errors.New("workers must be at least 1"))
	}
	if p.BufferSize < 1 {
		errs = append(errs, errors.New("buffer_size must be at least 1"))
	}
	if p.Matrices < 1 {
		errs = append(errs, errors.New("matrices must be at least 1"))
	}
	if p.ConsumerTarget < 0 {
		errs = append(errs, errors.New("consumer_target must not be negative"))
	}
	if p.MatrixMode < 0 || p.MatrixMode > MaxMatrixMode {
		errs = append(errs, fmt.Errorf("matrix_mode must be between 0 and %d", MaxMatrixMode))
	}
	switch c.Output.Mode {
	case OutputStream, OutputDeferred, OutputNone:
	default:
		errs = append(errs, fmt.Errorf("output.mode %q: want %s, %s or %s",
			c.Output.Mode, OutputStream, OutputDeferred, OutputNone))
	}
	return errors.Join(errs...)
}
