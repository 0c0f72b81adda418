// Package tutor implements the session lifecycle of a spoken language
// tutoring session: the state machine that acquires audio devices, dials the
// speech model, pumps audio both ways, commits transcripts to the chat log,
// and tears everything down again.
package tutor

import (
	"fmt"
	"strings"
)

// Level is a CEFR proficiency level the tutoring session is pitched at.
type Level string

const (
	LevelA1 Level = "A1"
	LevelA2 Level = "A2"
	LevelB1 Level = "B1"
	LevelB2 Level = "B2"
	LevelC1 Level = "C1"
	LevelC2 Level = "C2"
)

// Levels lists all valid levels in ascending order of proficiency.
var Levels = []Level{LevelA1, LevelA2, LevelB1, LevelB2, LevelC1, LevelC2}

// IsValid reports whether l is one of the known CEFR levels.
func (l Level) IsValid() bool {
	switch l {
	case LevelA1, LevelA2, LevelB1, LevelB2, LevelC1, LevelC2:
		return true
	}
	return false
}

// String returns the level identifier, e.g. "B1".
func (l Level) String() string { return string(l) }

// ParseLevel parses a case-insensitive level identifier.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToUpper(strings.TrimSpace(s)))
	if !l.IsValid() {
		return "", fmt.Errorf("tutor: unknown level %q (valid: A1, A2, B1, B2, C1, C2)", s)
	}
	return l, nil
}
