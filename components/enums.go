package components

import (
	"fmt"
	"strings"
)

// PollinatorState is the bout-level state of a pollinator.
type PollinatorState uint8

const (
	StateUninitiated PollinatorState = iota
	StateForaging
	StateBoutComplete
)

// PollinatorStatus is the outcome of the most recent decision cycle.
type PollinatorStatus uint8

const (
	StatusNoFlowerSeen PollinatorStatus = iota
	StatusOnFlower
	StatusDeclinedFlower
)

// ForagingStrategy selects how a candidate flower is chosen.
type ForagingStrategy uint8

const (
	ForageRandom ForagingStrategy = iota
	ForageNearestFlower
	ForageRandomFlower
	ForageRandomGlobal
)

// ConstancyType gates switching between flower types mid-bout.
type ConstancyType uint8

const (
	ConstancyNone ConstancyType = iota
	ConstancySimple
	ConstancyVisual
)

// LearningStrategy selects how the preference estimate evolves.
type LearningStrategy uint8

const (
	LearnDeliberativeDecisive LearningStrategy = iota
	LearnFickleCircumspect
	LearnStay
	LearnStayRandom
	LearnStayInnate
	LearnNone
)

// StepType selects the step-length policy.
type StepType uint8

const (
	StepConstant StepType = iota
	StepLevy
)

// InnatePrefType selects the innate colour preference of new pollinators.
type InnatePrefType uint8

const (
	InnateGiurfa InnatePrefType = iota
	InnateFlat
	InnateHoverfly
	InnatePreset
)

// Boundary selects what happens to a pollinator leaving the environment.
type Boundary uint8

const (
	BoundaryReflect Boundary = iota
	BoundaryWrap
)

// PlantState is the lifecycle state of a flowering plant.
type PlantState uint8

const (
	PlantAlive PlantState = iota
	PlantSenescent
)

var (
	stateNames     = []string{"uninitiated", "foraging", "bout_complete"}
	statusNames    = []string{"no_flower_seen", "on_flower", "declined_flower"}
	foragingNames  = []string{"random", "nearest_flower", "random_flower", "random_global"}
	constancyNames = []string{"none", "simple", "visual"}
	learningNames  = []string{"deliberative_decisive", "fickle_circumspect", "stay", "stay_random", "stay_innate", "none"}
	stepNames      = []string{"constant", "levy"}
	innateNames    = []string{"giurfa", "flat", "hoverfly", "preset"}
	boundaryNames  = []string{"reflect", "wrap"}
	plantNames     = []string{"alive", "senescent"}
)

func enumName(names []string, v uint8) string {
	if int(v) < len(names) {
		return names[v]
	}
	return fmt.Sprintf("unknown(%d)", v)
}

// parseEnum accepts the snake_case name, ignoring case and treating '-' as '_'.
// CamelCase names such as "NearestFlower" are also accepted.
func parseEnum(kind string, names []string, text []byte) (uint8, error) {
	s := normalizeEnumText(string(text))
	for i, n := range names {
		if s == n || s == strings.ReplaceAll(n, "_", "") {
			return uint8(i), nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q (want one of %s)", kind, string(text), strings.Join(names, ", "))
}

func normalizeEnumText(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ToLower(s)
}

func (s PollinatorState) String() string  { return enumName(stateNames, uint8(s)) }
func (s PollinatorStatus) String() string { return enumName(statusNames, uint8(s)) }
func (f ForagingStrategy) String() string { return enumName(foragingNames, uint8(f)) }
func (c ConstancyType) String() string    { return enumName(constancyNames, uint8(c)) }
func (l LearningStrategy) String() string { return enumName(learningNames, uint8(l)) }
func (s StepType) String() string         { return enumName(stepNames, uint8(s)) }
func (i InnatePrefType) String() string   { return enumName(innateNames, uint8(i)) }
func (b Boundary) String() string         { return enumName(boundaryNames, uint8(b)) }
func (p PlantState) String() string       { return enumName(plantNames, uint8(p)) }

func (f ForagingStrategy) MarshalText() ([]byte, error) { return []byte(f.String()), nil }
func (c ConstancyType) MarshalText() ([]byte, error)    { return []byte(c.String()), nil }
func (l LearningStrategy) MarshalText() ([]byte, error) { return []byte(l.String()), nil }
func (s StepType) MarshalText() ([]byte, error)         { return []byte(s.String()), nil }
func (i InnatePrefType) MarshalText() ([]byte, error)   { return []byte(i.String()), nil }
func (b Boundary) MarshalText() ([]byte, error)         { return []byte(b.String()), nil }

// UnmarshalText parses a foraging strategy name.
func (f *ForagingStrategy) UnmarshalText(text []byte) error {
	v, err := parseEnum("foraging strategy", foragingNames, text)
	if err != nil {
		return err
	}
	*f = ForagingStrategy(v)
	return nil
}

// UnmarshalText parses a constancy type name.
func (c *ConstancyType) UnmarshalText(text []byte) error {
	v, err := parseEnum("constancy type", constancyNames, text)
	if err != nil {
		return err
	}
	*c = ConstancyType(v)
	return nil
}

// UnmarshalText parses a learning strategy name.
func (l *LearningStrategy) UnmarshalText(text []byte) error {
	v, err := parseEnum("learning strategy", learningNames, text)
	if err != nil {
		return err
	}
	*l = LearningStrategy(v)
	return nil
}

// UnmarshalText parses a step type name.
func (s *StepType) UnmarshalText(text []byte) error {
	v, err := parseEnum("step type", stepNames, text)
	if err != nil {
		return err
	}
	*s = StepType(v)
	return nil
}

// UnmarshalText parses an innate preference type name.
func (i *InnatePrefType) UnmarshalText(text []byte) error {
	v, err := parseEnum("innate preference type", innateNames, text)
	if err != nil {
		return err
	}
	*i = InnatePrefType(v)
	return nil
}

// UnmarshalText parses a boundary mode name.
func (b *Boundary) UnmarshalText(text []byte) error {
	v, err := parseEnum("boundary", boundaryNames, text)
	if err != nil {
		return err
	}
	*b = Boundary(v)
	return nil
}

// Valid reports whether the value is a declared constant.
func (f ForagingStrategy) Valid() bool { return int(f) < len(foragingNames) }

// Valid reports whether the value is a declared constant.
func (c ConstancyType) Valid() bool { return int(c) < len(constancyNames) }

// Valid reports whether the value is a declared constant.
func (l LearningStrategy) Valid() bool { return int(l) < len(learningNames) }

// Valid reports whether the value is a declared constant.
func (s StepType) Valid() bool { return int(s) < len(stepNames) }

// Valid reports whether the value is a declared constant.
func (i InnatePrefType) Valid() bool { return int(i) < len(innateNames) }

// Valid reports whether the value is a declared constant.
func (b Boundary) Valid() bool { return int(b) < len(boundaryNames) }

// TracksPreference reports whether the strategy keeps a colour preference.
func (l LearningStrategy) TracksPreference() bool { return l != LearnNone }

// LearnsPerVisit reports whether the preference is updated after each visit.
func (l LearningStrategy) LearnsPerVisit() bool {
	return l == LearnDeliberativeDecisive || l == LearnFickleCircumspect
}
