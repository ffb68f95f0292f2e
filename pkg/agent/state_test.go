package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestAttributeAt(t *testing.T) {
	s := New("a1")
	s.SetAttribute("income", "30000", day("2024-01-01"))
	s.SetAttribute("income", "50000", day("2024-06-01"))
	s.SetAttribute("income", "40000", day("2024-03-01"))

	tests := []struct {
		name  string
		date  string
		want  string
		found bool
	}{
		{"before any entry", "2023-12-31", "", false},
		{"on first entry", "2024-01-01", "30000", true},
		{"between entries", "2024-02-15", "30000", true},
		{"out of order append resolves by date", "2024-04-01", "40000", true},
		{"after latest", "2025-01-01", "50000", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.AttributeAt("income", day(tt.date))
			require.Equal(t, tt.found, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestAttributesReflectCallOrder(t *testing.T) {
	s := New("a1")
	s.SetAttribute("status", "married", day("2024-06-01"))
	s.SetAttribute("status", "single", day("2024-01-01"))

	require.Equal(t, "single", s.Attributes["status"])
	got, ok := s.AttributeAt("status", day("2024-12-31"))
	require.True(t, ok)
	require.Equal(t, "married", got)
	require.Len(t, s.History, 2)
}

func TestAttributeAtSameDateLaterAppendWins(t *testing.T) {
	s := New("a1")
	s.SetAttribute("age", "30", day("2024-01-01"))
	s.SetAttribute("age", "31", day("2024-01-01"))

	got, ok := s.AttributeAt("age", day("2024-01-01"))
	require.True(t, ok)
	require.Equal(t, "31", got)
}

func TestAttributeKeysAreNormalized(t *testing.T) {
	s := New("a1")
	// "é" written as e + combining acute accent.
	s.SetAttribute("re\u0301gion", "north", day("2024-01-01"))

	got, ok := s.AttributeAt("r\u00e9gion", day("2024-02-01"))
	require.True(t, ok)
	require.Equal(t, "north", got)
}

func TestIsActiveAt(t *testing.T) {
	s := New("a1")
	s.Born(day("2000-01-01"))
	s.DeathDate = day("2024-06-01")

	require.False(t, s.IsActiveAt(day("1999-12-31")))
	require.True(t, s.IsActiveAt(day("2000-01-01")))
	require.True(t, s.IsActiveAt(day("2024-05-31")))
	require.False(t, s.IsActiveAt(day("2024-06-01")))

	unbounded := New("a2")
	require.True(t, unbounded.IsActiveAt(day("1900-01-01")))

	unbounded.Active = false
	require.False(t, unbounded.IsActiveAt(day("1900-01-01")))
}

func TestDieKeepsRecord(t *testing.T) {
	s := New("a1")
	s.SetAttribute("age", "80", day("2024-01-01"))
	s.Die(day("2024-03-01"))

	require.False(t, s.Active)
	require.Equal(t, day("2024-03-01"), s.DeathDate)
	require.Equal(t, "80", s.Attributes["age"])
}

func TestCloneIsIndependent(t *testing.T) {
	s := New("a1")
	s.SetAttribute("age", "40", day("2024-01-01"))

	c := s.Clone()
	c.SetAttribute("age", "41", day("2025-01-01"))

	require.Equal(t, "40", s.Attributes["age"])
	require.Len(t, s.History, 1)
	require.Len(t, c.History, 2)
}
