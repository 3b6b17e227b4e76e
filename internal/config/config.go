// Package config loads roomsim scenarios: a YAML file validated against an
// embedded JSON schema, then overridden from the environment.
package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/talgya/mini-room/internal/agents"
	"github.com/talgya/mini-room/internal/engine"
	"github.com/talgya/mini-room/internal/world"
)

// ErrInvalid wraps every scenario that fails schema or semantic checks.
var ErrInvalid = errors.New("invalid scenario")

// Environment variables read by FromEnv.
const (
	EnvConfig    = "ROOMSIM_CONFIG"
	EnvDB        = "ROOMSIM_DB"
	EnvPort      = "ROOMSIM_PORT"
	EnvSeed      = "ROOMSIM_SEED"
	EnvAdminKey  = "ROOMSIM_ADMIN_KEY"
	EnvRelayKey  = "ROOMSIM_RELAY_KEY"
	EnvRandomOrg = "RANDOM_ORG_API_KEY"
	EnvCORS      = "CORS_ORIGINS"
)

//go:embed scenario.schema.json
var schemaJSON string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// Scenario is everything needed to start a run.
type Scenario struct {
	Seed        int64    `yaml:"seed"` // 0 = draw one at startup
	FPS         int      `yaml:"fps"`
	DBPath      string   `yaml:"db_path"`
	Port        int      `yaml:"port"`
	StreamEvery int      `yaml:"stream_every"` // Frames between pushes to stream clients
	EventLogCap int      `yaml:"event_log_cap"`
	CORSOrigins []string `yaml:"cors_origins"`
	Collision   string   `yaml:"collision"`

	Room     RoomSpec      `yaml:"room"`
	Actors   []SeatSpec    `yaml:"actors"`
	Scatter  *ScatterSpec  `yaml:"scatter"`
	Behavior agents.Tuning `yaml:"behavior"`

	// Secrets only ever come from the environment.
	AdminKey     string `yaml:"-"`
	RelayKey     string `yaml:"-"`
	RandomOrgKey string `yaml:"-"`
}

// RoomSpec selects the floor plan: the authored lounge preset, explicit
// bounds with obstacles and hotspots, or a generated layout.
type RoomSpec struct {
	Preset    string           `yaml:"preset"`
	Bounds    *world.Rect      `yaml:"bounds"`
	Obstacles []world.Obstacle `yaml:"obstacles"`
	Hotspots  []world.Hotspot  `yaml:"hotspots"`
	Generate  *GenerateSpec    `yaml:"generate"`
}

// GenerateSpec is a world.GenConfig whose unset keys keep their defaults.
type GenerateSpec struct {
	world.GenConfig `yaml:",inline"`
}

// UnmarshalYAML decodes over DefaultGenConfig.
func (g *GenerateSpec) UnmarshalYAML(n *yaml.Node) error {
	cfg := world.DefaultGenConfig()
	if err := n.Decode(&cfg); err != nil {
		return err
	}
	g.GenConfig = cfg
	return nil
}

// SeatSpec is one roster entry. YAML accepts either a tuple
// [x, z, facing_bias, personality] or a mapping with the same keys.
type SeatSpec struct {
	X           float64
	Z           float64
	FacingBias  float64
	Personality string
}

// UnmarshalYAML accepts the tuple and mapping forms.
func (s *SeatSpec) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.SequenceNode:
		if len(n.Content) < 2 || len(n.Content) > 4 {
			return fmt.Errorf("line %d: seat tuple needs 2 to 4 elements, got %d", n.Line, len(n.Content))
		}
		fields := []any{&s.X, &s.Z, &s.FacingBias, &s.Personality}
		for i, c := range n.Content {
			if err := c.Decode(fields[i]); err != nil {
				return fmt.Errorf("line %d: seat element %d: %w", c.Line, i, err)
			}
		}
		return nil
	case yaml.MappingNode:
		var m struct {
			X           float64 `yaml:"x"`
			Z           float64 `yaml:"z"`
			FacingBias  float64 `yaml:"facing_bias"`
			Personality string  `yaml:"personality"`
		}
		if err := n.Decode(&m); err != nil {
			return err
		}
		*s = SeatSpec(m)
		return nil
	default:
		return fmt.Errorf("line %d: seat must be a tuple or a mapping", n.Line)
	}
}

// ScatterSpec asks for count seats sampled across the walkable floor.
type ScatterSpec struct {
	Count   int     `yaml:"count"`
	Spacing float64 `yaml:"spacing"` // 0 = behavior.engage_distance
}

// Default returns the lounge scenario.
func Default() *Scenario {
	return &Scenario{
		FPS:         engine.DefaultFPS,
		DBPath:      "data/roomsim.db",
		Port:        8080,
		StreamEvery: 2,
		EventLogCap: engine.DefaultConfig().EventLogCap,
		Collision:   engine.CollisionSequential.String(),
		Room:        RoomSpec{Preset: "lounge"},
		Behavior:    agents.DefaultTuning(),
	}
}

// FromEnv loads the file named by ROOMSIM_CONFIG (defaults when unset) and
// applies the remaining environment overrides.
func FromEnv(getenv func(string) string) (*Scenario, error) {
	sc, err := Load(getenv(EnvConfig))
	if err != nil {
		return nil, err
	}
	if err := sc.ApplyEnv(getenv); err != nil {
		return nil, err
	}
	return sc, nil
}

// Load reads a scenario file. An empty path returns Default.
func Load(path string) (*Scenario, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse validates a YAML document against the schema and decodes it over
// the defaults.
func Parse(data []byte) (*Scenario, error) {
	if err := validateSchema(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	sc := Default()
	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("scenario.schema.json", schemaJSON)
	})
	return schema, schemaErr
}

func validateSchema(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if doc == nil {
		return nil // empty file, all defaults
	}

	// The validator works on JSON-decoded values.
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("scenario is not JSON-compatible: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}

	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	return s.Validate(v)
}

// ApplyEnv overrides file values with any variables that are set.
func (s *Scenario) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvDB); v != "" {
		s.DBPath = v
	}
	if v := getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalid, EnvPort, v, err)
		}
		s.Port = port
	}
	if v := getenv(EnvSeed); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalid, EnvSeed, v, err)
		}
		s.Seed = seed
	}
	if v := getenv(EnvCORS); v != "" {
		s.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				s.CORSOrigins = append(s.CORSOrigins, o)
			}
		}
	}
	s.AdminKey = getenv(EnvAdminKey)
	s.RelayKey = getenv(EnvRelayKey)
	s.RandomOrgKey = getenv(EnvRandomOrg)
	return s.Validate()
}

// Validate checks what the schema cannot: cross-field rules and the
// behaviour tuning.
func (s *Scenario) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
	}

	if s.FPS < 1 {
		return invalid("fps must be positive, got %d", s.FPS)
	}
	if s.Port < 1 || s.Port > 65535 {
		return invalid("port %d out of range", s.Port)
	}
	if s.StreamEvery < 1 {
		return invalid("stream_every must be positive, got %d", s.StreamEvery)
	}
	if s.EventLogCap < 1 {
		return invalid("event_log_cap must be positive, got %d", s.EventLogCap)
	}
	if _, err := engine.ParseCollisionMode(s.Collision); err != nil {
		return invalid("%v", err)
	}
	if err := s.Behavior.Validate(); err != nil {
		return invalid("behavior: %v", err)
	}

	r := s.Room
	if r.Bounds != nil && r.Generate != nil {
		return invalid("room: bounds and generate are mutually exclusive")
	}
	if r.Bounds == nil && (len(r.Obstacles) > 0 || len(r.Hotspots) > 0) {
		return invalid("room: obstacles and hotspots need explicit bounds")
	}
	if r.Preset != "" && r.Preset != "lounge" {
		return invalid("room: unknown preset %q", r.Preset)
	}

	if len(s.Actors) > 0 && s.Scatter != nil {
		return invalid("actors and scatter are mutually exclusive")
	}
	if s.Scatter != nil && s.Scatter.Count < 1 {
		return invalid("scatter.count must be positive, got %d", s.Scatter.Count)
	}
	for i, seat := range s.Actors {
		if seat.Personality == "" {
			continue
		}
		if _, err := agents.ParsePersonality(seat.Personality); err != nil {
			return invalid("actor %d: %v", i, err)
		}
	}
	return nil
}
