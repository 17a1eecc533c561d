package relevance

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Flag is a categorical marker attached to a relevance result.
type Flag uint8

const (
	NewOpportunity Flag = 1 << iota
	ProvenTopic
	WatchlistMatch
	Breaking
)

var allFlags = []Flag{NewOpportunity, ProvenTopic, WatchlistMatch, Breaking}

func (f Flag) String() string {
	switch f {
	case NewOpportunity:
		return "new_opportunity"
	case ProvenTopic:
		return "proven_topic"
	case WatchlistMatch:
		return "watchlist_match"
	case Breaking:
		return "breaking"
	}
	return fmt.Sprintf("flag(%d)", uint8(f))
}

// ParseFlag is the inverse of Flag.String.
func ParseFlag(s string) (Flag, error) {
	for _, f := range allFlags {
		if f.String() == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown relevance flag %q", s)
}

// FlagSet is a set of flags. The zero value is empty.
type FlagSet uint8

// Has reports whether f is in the set.
func (s FlagSet) Has(f Flag) bool { return uint8(s)&uint8(f) != 0 }

// With returns the set with f added.
func (s FlagSet) With(f Flag) FlagSet { return FlagSet(uint8(s) | uint8(f)) }

// List returns the flags in declaration order.
func (s FlagSet) List() []Flag {
	var out []Flag
	for _, f := range allFlags {
		if s.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

func (s FlagSet) String() string {
	names := make([]string, 0, 4)
	for _, f := range s.List() {
		names = append(names, f.String())
	}
	return strings.Join(names, ",")
}

// ParseFlagSet parses the comma-separated form produced by String.
func ParseFlagSet(s string) (FlagSet, error) {
	var set FlagSet
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f, err := ParseFlag(part)
		if err != nil {
			return 0, err
		}
		set = set.With(f)
	}
	return set, nil
}

func (s FlagSet) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, 4)
	for _, f := range s.List() {
		names = append(names, f.String())
	}
	return json.Marshal(names)
}

func (s *FlagSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return fmt.Errorf("decode flags: %w", err)
	}
	var set FlagSet
	for _, n := range names {
		f, err := ParseFlag(n)
		if err != nil {
			return err
		}
		set = set.With(f)
	}
	*s = set
	return nil
}
