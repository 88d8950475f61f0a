// Package app defines the user application contract: the per-run
// lifecycle hooks a concrete DAQ application implements, and the typed,
// constrained configuration schema the run-control FSM loads and saves on
// its behalf.
package app

import (
	"fmt"

	"github.com/lucabaldini/baldaquin/errors"
	"github.com/lucabaldini/baldaquin/log"
)

// Kind is a configuration parameter's primitive type.
type Kind int

const (
	Bool Kind = iota
	Int
	Float
	String
)

func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Float:
		return "float"
	case String:
		return "string"
	default:
		return "unknown"
	}
}

// Parameter is a single named, typed, constrained configuration value.
// Constraints are interpreted according to Kind: IntChoices/Step/Min/Max
// for Int, Min/Max for Float, StringChoices for String; Bool carries no
// constraints, matching the recognized-constraints table in §4.6.
type Parameter struct {
	Name  string
	Kind  Kind
	Value interface{}

	// Help is the parameter's human-readable intent, written as a leading
	// comment in the configuration file.
	Help string
	// Units is the parameter's engineering unit, display-only.
	Units string
	// Format is an optional display format hint (e.g. "%.2f"), display-only.
	Format string

	IntChoices    []int64
	StringChoices []string
	Step          int64
	Min           float64
	Max           float64
	hasMin        bool
	hasMax        bool
}

// WithMin/WithMax record that Min/Max are active constraints (0 is a
// legitimate bound, so presence must be tracked separately).
func (p *Parameter) WithMin(min float64) *Parameter { p.Min = min; p.hasMin = true; return p }
func (p *Parameter) WithMax(max float64) *Parameter { p.Max = max; p.hasMax = true; return p }

// NewBool, NewInt, NewFloat and NewString build parameters of each
// supported Kind holding the given default value. The default is stored
// as given: it is not checked against constraints added afterwards.
func NewBool(name string, value bool, help string) *Parameter {
	return &Parameter{Name: name, Kind: Bool, Value: value, Help: help}
}

func NewInt(name string, value int64, help string) *Parameter {
	return &Parameter{Name: name, Kind: Int, Value: value, Help: help}
}

func NewFloat(name string, value float64, help string) *Parameter {
	return &Parameter{Name: name, Kind: Float, Value: value, Help: help}
}

func NewString(name string, value string, help string) *Parameter {
	return &Parameter{Name: name, Kind: String, Value: value, Help: help}
}

// Set validates value against p's Kind then its constraints, in that
// order; an invalid value leaves p.Value untouched and returns one of
// InvalidType, NumberTooSmall, NumberTooLarge, InvalidChoice, InvalidStep.
func (p *Parameter) Set(value interface{}) error {
	switch p.Kind {
	case Bool:
		if _, ok := value.(bool); !ok {
			return errors.E(errors.InvalidType, p.Name)
		}
	case Int:
		v, ok := toInt64(value)
		if !ok {
			return errors.E(errors.InvalidType, p.Name)
		}
		if err := p.checkIntConstraints(v); err != nil {
			return err
		}
		value = v
	case Float:
		v, ok := toFloat64(value)
		if !ok {
			return errors.E(errors.InvalidType, p.Name)
		}
		if p.hasMin && v < p.Min {
			return errors.E(errors.NumberTooSmall, p.Name)
		}
		if p.hasMax && v > p.Max {
			return errors.E(errors.NumberTooLarge, p.Name)
		}
		value = v
	case String:
		v, ok := value.(string)
		if !ok {
			return errors.E(errors.InvalidType, p.Name)
		}
		if len(p.StringChoices) > 0 && !containsString(p.StringChoices, v) {
			return errors.E(errors.InvalidChoice, p.Name)
		}
	}
	p.Value = value
	return nil
}

func (p *Parameter) checkIntConstraints(v int64) error {
	if len(p.IntChoices) > 0 && !containsInt64(p.IntChoices, v) {
		return errors.E(errors.InvalidChoice, p.Name)
	}
	if p.hasMin && float64(v) < p.Min {
		return errors.E(errors.NumberTooSmall, p.Name)
	}
	if p.hasMax && float64(v) > p.Max {
		return errors.E(errors.NumberTooLarge, p.Name)
	}
	if p.Step > 0 {
		base := int64(p.Min)
		if (v-base)%p.Step != 0 {
			return errors.E(errors.InvalidStep, p.Name)
		}
	}
	return nil
}

func containsInt64(choices []int64, v int64) bool {
	for _, c := range choices {
		if c == v {
			return true
		}
	}
	return false
}

func containsString(choices []string, v string) bool {
	for _, c := range choices {
		if c == v {
			return true
		}
	}
	return false
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

// Section is a named, ordered group of parameters.
type Section struct {
	Name       string
	Parameters []*Parameter
}

// Parameter returns the named parameter in the section, or nil.
func (s *Section) Parameter(name string) *Parameter {
	for _, p := range s.Parameters {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Configuration is a named collection of Sections, the schema a user
// application binds per §4.6.
type Configuration struct {
	Name     string
	Sections []*Section
}

// NewConfiguration returns an empty, named configuration.
func NewConfiguration(name string) *Configuration {
	return &Configuration{Name: name}
}

// AddSection appends a new section and returns it for chaining.
func (c *Configuration) AddSection(name string) *Section {
	s := &Section{Name: name}
	c.Sections = append(c.Sections, s)
	return s
}

// Add appends a parameter to section and returns the section for chaining.
func (s *Section) Add(p *Parameter) *Section {
	s.Parameters = append(s.Parameters, p)
	return s
}

// Section returns the named section, or nil.
func (c *Configuration) Section(name string) *Section {
	for _, s := range c.Sections {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Value returns the current value of section.key, or nil if not found.
func (c *Configuration) Value(section, key string) interface{} {
	s := c.Section(section)
	if s == nil {
		return nil
	}
	p := s.Parameter(key)
	if p == nil {
		return nil
	}
	return p.Value
}

// SetValue validates and applies value to section.key. Unknown
// section/key pairs are reported as a programmer error of Kind Invalid,
// since the schema is fixed at application-bind time.
func (c *Configuration) SetValue(section, key string, value interface{}) error {
	s := c.Section(section)
	if s == nil {
		return errors.E(errors.Invalid, fmt.Sprintf("unknown section %q", section))
	}
	p := s.Parameter(key)
	if p == nil {
		return errors.E(errors.Invalid, fmt.Sprintf("unknown parameter %q in section %q", key, section))
	}
	return p.Set(value)
}

// applyLoaded sets a value read from file, warning and skipping on any
// validation error, per the "warned and ignored"/"warned and skipped"
// load-time policy in §4.6.
func (c *Configuration) applyLoaded(section, key, raw string) {
	s := c.Section(section)
	if s == nil {
		log.Error.Printf("config: unknown section %q, ignoring", section)
		return
	}
	p := s.Parameter(key)
	if p == nil {
		log.Error.Printf("config: unknown parameter %q in section %q, ignoring", key, section)
		return
	}
	value, err := parseValue(p.Kind, raw)
	if err != nil {
		log.Error.Printf("config: %q.%q: %v, keeping previous value", section, key, err)
		return
	}
	if err := p.Set(value); err != nil {
		log.Error.Printf("config: %q.%q: %v, keeping previous value", section, key, err)
	}
}
