// Package config loads the YAML file that describes a fieldcover
// deployment: the field universe, which providers to register and how the
// servers and telemetry are set up.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/hanpama/fieldcover/internal/field"
	"github.com/hanpama/fieldcover/internal/setcover"
	"github.com/hanpama/fieldcover/internal/stats"
)

type Config struct {
	Universe  []Field  `yaml:"universe" validate:"required,min=1,dive"`
	Solver    Solver   `yaml:"solver"`
	Providers []string `yaml:"providers" validate:"dive,required"`
	Remote    []Remote `yaml:"remote" validate:"dive"`
	Server    Server   `yaml:"server"`
	GRPC      GRPC     `yaml:"grpc"`
	Log       Log      `yaml:"log"`
	OTel      OTel     `yaml:"otel"`
	Metrics   Metrics  `yaml:"metrics"`
}

type Field struct {
	Name        string `yaml:"name" validate:"required"`
	Kind        string `yaml:"kind" validate:"omitempty,oneof=any int float string bool int_list float_list"`
	Description string `yaml:"description"`
}

type Solver struct {
	// TiePolicy is parsed by setcover.ParseTiePolicy; empty means tightest.
	TiePolicy string `yaml:"tie_policy"`
}

// Remote registers a provider served by another fieldcover instance.
type Remote struct {
	Name     string        `yaml:"name" validate:"required"`
	Endpoint string        `yaml:"endpoint" validate:"required,hostname_port"`
	Outputs  []string      `yaml:"outputs" validate:"required,min=1,dive,required"`
	Timeout  time.Duration `yaml:"timeout" validate:"gte=0"`
}

type Server struct {
	Addr             string        `yaml:"addr"`
	Timeout          time.Duration `yaml:"timeout" validate:"gte=0"`
	Pretty           bool          `yaml:"pretty"`
	MaxBodyBytes     int64         `yaml:"max_body_bytes" validate:"gte=0"`
	CORS             bool          `yaml:"cors"`
	RateLimit        float64       `yaml:"rate_limit" validate:"gte=0"`
	Burst            int           `yaml:"burst" validate:"gte=0"`
	BatchConcurrency int           `yaml:"batch_concurrency" validate:"gte=0"`
}

type GRPC struct {
	// Addr enables the gRPC listener when set.
	Addr    string `yaml:"addr"`
	Package string `yaml:"package"`
}

type Log struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json console"`
	Output string `yaml:"output"`
}

type OTel struct {
	// Endpoint enables OTLP trace export when set.
	Endpoint string `yaml:"endpoint"`
	Service  string `yaml:"service"`
	Insecure bool   `yaml:"insecure"`
}

type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"omitempty,startswith=/"`
}

// Default describes the stats demo: every stats field and provider, served
// on :8080.
func Default() *Config {
	c := &Config{
		Providers: stats.Names(),
		Server: Server{
			Addr:             ":8080",
			Timeout:          10 * time.Second,
			MaxBodyBytes:     1 << 20,
			BatchConcurrency: 4,
		},
		GRPC:    GRPC{Package: "fieldcover.v1"},
		Log:     Log{Level: "info", Format: "console"},
		OTel:    OTel{Service: "fieldcover"},
		Metrics: Metrics{Path: "/metrics"},
	}
	for _, f := range stats.Fields() {
		c.Universe = append(c.Universe, Field{Name: f.Name, Kind: f.Kind.String(), Description: f.Description})
	}
	return c
}

// Load reads and validates the file at path. Values absent from the file
// keep their Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default and validates the result. Unknown keys
// are rejected. A file that declares its own universe starts with no stats
// providers unless it lists them.
func Parse(data []byte) (*Config, error) {
	c := Default()
	var top map[string]any
	if err := yaml.Unmarshal(data, &top); err == nil {
		_, hasUniverse := top["universe"]
		_, hasProviders := top["providers"]
		if hasUniverse && !hasProviders {
			c.Providers = nil
		}
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags, the tie policy and the universe declaration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.TiePolicy(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	u, err := c.FieldUniverse()
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.checkProviders(u); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// checkProviders resolves every stats provider name and checks that all
// provider outputs are declared in u.
func (c *Config) checkProviders(u *field.Universe) error {
	for _, name := range c.Providers {
		p, ok := stats.Lookup(name)
		if !ok {
			return fmt.Errorf("providers: unknown provider %q", name)
		}
		for _, o := range p.Outputs() {
			if _, ok := u.Index(o); !ok {
				return fmt.Errorf("providers: %q outputs %q, which is not in the universe", name, o)
			}
		}
	}
	for _, r := range c.Remote {
		for _, o := range r.Outputs {
			if _, ok := u.Index(o); !ok {
				return fmt.Errorf("remote %q: output %q is not in the universe", r.Name, o)
			}
		}
	}
	return nil
}

// TiePolicy parses Solver.TiePolicy.
func (c *Config) TiePolicy() (setcover.TiePolicy, error) {
	if c.Solver.TiePolicy == "" {
		return setcover.TightestOneWins, nil
	}
	return setcover.ParseTiePolicy(c.Solver.TiePolicy)
}

// FieldUniverse declares the configured universe.
func (c *Config) FieldUniverse() (*field.Universe, error) {
	fields := make([]field.Field, len(c.Universe))
	for i, f := range c.Universe {
		k, err := field.ParseKind(f.Kind)
		if err != nil {
			return nil, fmt.Errorf("universe[%d]: %w", i, err)
		}
		fields[i] = field.Field{Name: f.Name, Kind: k, Description: f.Description}
	}
	return field.Declare(fields...)
}
