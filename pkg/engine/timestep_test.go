package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTimeStep(t *testing.T) {
	tests := []struct {
		in   string
		want TimeStep
	}{
		{"day", Day},
		{"Weekly", Week},
		{" month ", Month},
		{"quarter", Quarter},
		{"YEAR", Year},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeStep(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.True(t, got.Valid())
		})
	}

	_, err := ParseTimeStep("fortnight")
	require.ErrorContains(t, err, "unknown time step")
}

func TestStepsBetween(t *testing.T) {
	start := date("2024-01-01")
	require.Equal(t, 365, Day.StepsBetween(start, date("2024-12-31")))
	require.Equal(t, 12, Month.StepsBetween(start, date("2024-12-31")))
	// 2024 is a leap year, so 365 days after January 1 is December 31.
	require.Equal(t, 0, Year.StepsBetween(start, date("2024-12-30")))
	require.Equal(t, 1, Year.StepsBetween(start, date("2024-12-31")))
	require.Equal(t, 0, Week.StepsBetween(date("2024-02-01"), start))
}

func TestYearFraction(t *testing.T) {
	require.InDelta(t, 1.0/365, Day.YearFraction(), 1e-12)
	require.InDelta(t, 7.0/365, Week.YearFraction(), 1e-12)
	require.InDelta(t, 1.0/12, Month.YearFraction(), 1e-12)
	require.InDelta(t, 0.25, Quarter.YearFraction(), 1e-12)
	require.InDelta(t, 1.0, Year.YearFraction(), 1e-12)
	require.Equal(t, "quarter", Quarter.String())
}
