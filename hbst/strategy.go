package hbst

import (
	"strings"

	"github.com/pkg/errors"
)

// SplittingStrategy selects how a leaf chooses its split bit.
type SplittingStrategy int

const (
	// DoNothing never splits. Passed to Add it defers training until Train is called.
	DoNothing SplittingStrategy = iota
	// SplitEven picks the available bit whose set fraction is closest to 0.5.
	SplitEven
	// SplitUneven picks the available bit whose set fraction is farthest from 0.5.
	SplitUneven
	// SplitRandomUniform samples the split bit uniformly among the available bits.
	SplitRandomUniform
)

var strategyNames = map[SplittingStrategy]string{
	DoNothing:          "do-nothing",
	SplitEven:          "split-even",
	SplitUneven:        "split-uneven",
	SplitRandomUniform: "split-random-uniform",
}

func (s SplittingStrategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether s is one of the known strategies.
func (s SplittingStrategy) Valid() bool {
	_, ok := strategyNames[s]
	return ok
}

// ParseSplittingStrategy parses a strategy name as produced by String.
func ParseSplittingStrategy(name string) (SplittingStrategy, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for s, sn := range strategyNames {
		if sn == n {
			return s, nil
		}
	}
	return DoNothing, errors.Wrapf(ErrUnknownStrategy, "%q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s SplittingStrategy) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, errors.Wrapf(ErrUnknownStrategy, "%d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler (used by the YAML config loader).
func (s *SplittingStrategy) UnmarshalText(text []byte) error {
	v, err := ParseSplittingStrategy(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func checkStrategy(s SplittingStrategy) error {
	if !s.Valid() {
		return errors.Wrapf(ErrUnknownStrategy, "%d", int(s))
	}
	return nil
}
