// Package scenario loads simulation scenarios from YAML.
//
// A scenario names a period and step, the statutes in force with their
// amendment history, the starting population and any pre-scheduled events.
// Documents are validated against an embedded JSON Schema before they are
// decoded, then checked semantically: dates parse, versions are semantic
// versions that increase with each amendment and rule expressions compile.
package scenario

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gowebpki/jcs"
	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/lexsim/pkg/agent"
	"github.com/Mindburn-Labs/lexsim/pkg/engine"
	"github.com/Mindburn-Labs/lexsim/pkg/event"
	"github.com/Mindburn-Labs/lexsim/pkg/statute"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid scenario")

// Document is the YAML form of a scenario.
type Document struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description,omitempty"`
	Start       string          `yaml:"start"`
	End         string          `yaml:"end"`
	Step        string          `yaml:"step"`
	Statutes    []StatuteSpec   `yaml:"statutes,omitempty"`
	Population  PopulationSpec  `yaml:"population,omitempty"`
	Events      []EventSpec     `yaml:"events,omitempty"`
	Projection  *ProjectionSpec `yaml:"projection,omitempty"`
}

type StatuteSpec struct {
	ID         string          `yaml:"id"`
	Title      string          `yaml:"title,omitempty"`
	Version    string          `yaml:"version"`
	Condition  string          `yaml:"condition,omitempty"`
	Discretion string          `yaml:"discretion,omitempty"`
	Effect     statute.Effect  `yaml:"effect"`
	Effective  string          `yaml:"effective,omitempty"`
	Expiry     string          `yaml:"expiry,omitempty"`
	Amendments []AmendmentSpec `yaml:"amendments,omitempty"`
}

// AmendmentSpec replaces the statute's rule from Date. Omitted fields carry
// over from the preceding version.
type AmendmentSpec struct {
	Date       string          `yaml:"date"`
	Version    string          `yaml:"version"`
	Title      string          `yaml:"title,omitempty"`
	Condition  *string         `yaml:"condition,omitempty"`
	Discretion *string         `yaml:"discretion,omitempty"`
	Effect     *statute.Effect `yaml:"effect,omitempty"`
}

type PopulationSpec struct {
	// DeclaredAttributes limits which attributes are ingested. Empty keeps all.
	DeclaredAttributes []string    `yaml:"declared_attributes,omitempty"`
	Agents             []AgentSpec `yaml:"agents,omitempty"`
}

type AgentSpec struct {
	ID         string            `yaml:"id"`
	Birth      string            `yaml:"birth,omitempty"`
	Death      string            `yaml:"death,omitempty"`
	Attributes map[string]string `yaml:"attributes,omitempty"`
	History    []HistorySpec     `yaml:"history,omitempty"`
}

type HistorySpec struct {
	Date  string `yaml:"date"`
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

type EventSpec struct {
	Kind  string `yaml:"kind"`
	Date  string `yaml:"date"`
	Agent string `yaml:"agent"`
	Key   string `yaml:"key,omitempty"`
	Value string `yaml:"value,omitempty"`
}

type ProjectionSpec struct {
	BirthRate        float64 `yaml:"birth_rate"`
	DeathRate        float64 `yaml:"death_rate"`
	IncomeGrowthRate float64 `yaml:"income_growth_rate"`
	// Model is constant (default), linear, exponential or custom.
	Model string `yaml:"model,omitempty"`
	// Rate is the yearly rate for exponential and the per-step rate for custom.
	Rate float64 `yaml:"rate,omitempty"`
}

// Scenario is a validated, resolved scenario.
type Scenario struct {
	Doc Document

	start, end time.Time
	step       engine.TimeStep
	statutes   []*statute.Temporal
	agents     []*agent.State
	events     []event.Event
	projection *engine.ProjectionConfig
	canonical  []byte
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data)
}

// Parse validates and resolves a scenario document.
func Parse(data []byte) (*Scenario, error) {
	raw, err := validated("", data)
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := strictDecode(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize scenario: %w", err)
	}

	s := &Scenario{Doc: doc, canonical: canonical}
	if err := s.resolve(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return s, nil
}

// LoadStatute reads a single statute document, as used for what-if and
// retroactive alternatives.
func LoadStatute(path string) (*statute.Temporal, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("read statute: %w", err)
	}
	return ParseStatute(data)
}

// ParseStatute validates and resolves a single statute document.
func ParseStatute(data []byte) (*statute.Temporal, error) {
	if _, err := validated("statute", data); err != nil {
		return nil, err
	}
	var spec StatuteSpec
	if err := strictDecode(data, &spec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	checker, err := newChecker()
	if err != nil {
		return nil, err
	}
	st, err := checker.statute(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return st, nil
}

func validated(def string, data []byte) ([]byte, error) {
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("%w: parse yaml: %w", ErrInvalid, err)
	}
	if generic == nil {
		return nil, fmt.Errorf("%w: empty document", ErrInvalid)
	}
	raw, err := toJSON(def, generic)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return raw, nil
}

func strictDecode(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode yaml: %w", err)
	}
	return nil
}

// Start returns the first simulated date.
func (s *Scenario) Start() time.Time { return s.start }

// End returns the last simulated date.
func (s *Scenario) End() time.Time { return s.end }

// Step returns the simulation step.
func (s *Scenario) Step() engine.TimeStep { return s.step }

// Statutes returns copies of the resolved statutes.
func (s *Scenario) Statutes() []*statute.Temporal {
	out := make([]*statute.Temporal, len(s.statutes))
	for i, st := range s.statutes {
		out[i] = st.Clone()
	}
	return out
}

// Builder returns an engine builder preloaded with the scenario. Callers add
// the evaluator, logger, observability and parallelism.
func (s *Scenario) Builder() *engine.Builder {
	agents := make([]*agent.State, len(s.agents))
	for i, a := range s.agents {
		agents[i] = a.Clone()
	}
	events := make([]event.Event, len(s.events))
	copy(events, s.events)

	return engine.NewBuilder().
		Period(s.start, s.end).
		Step(s.step).
		Statutes(s.Statutes()...).
		Population(agents, s.Doc.Population.DeclaredAttributes...).
		Schedule(events...)
}

// Projection returns the demographic projection config, if the scenario has one.
func (s *Scenario) Projection() (engine.ProjectionConfig, bool) {
	if s.projection == nil {
		return engine.ProjectionConfig{}, false
	}
	return *s.projection, true
}

// Digest returns "sha256:<hex>" over the canonical JSON of the document.
// Formatting, key order and comments do not change it.
func (s *Scenario) Digest() string {
	sum := sha256.Sum256(s.canonical)
	return "sha256:" + hex.EncodeToString(sum[:])
}
