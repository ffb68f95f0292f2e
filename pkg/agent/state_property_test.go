//go:build property
// +build property

package agent

import (
	"strconv"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// TestAttributeAtPicksGreatestDate verifies AttributeAt returns the value
// recorded with the greatest date not after the query, whatever the append order.
func TestAttributeAtPicksGreatestDate(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("AttributeAt matches max-date entry", prop.ForAll(
		func(offsets []int, query int) bool {
			s := New("p")
			for i, off := range offsets {
				s.SetAttribute("k", strconv.Itoa(i), epoch.AddDate(0, 0, off))
			}
			at := epoch.AddDate(0, 0, query)

			bestIdx := -1
			for i, off := range offsets {
				if off > query {
					continue
				}
				if bestIdx == -1 || off >= offsets[bestIdx] {
					bestIdx = i
				}
			}

			got, ok := s.AttributeAt("k", at)
			if bestIdx == -1 {
				return !ok
			}
			return ok && got == strconv.Itoa(bestIdx)
		},
		gen.SliceOf(gen.IntRange(0, 365)),
		gen.IntRange(-10, 400),
	))

	properties.TestingRun(t)
}

// TestIsActiveAtBounds verifies the half-open life window.
func TestIsActiveAtBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("active iff birth <= d < death", prop.ForAll(
		func(birth, span, query int) bool {
			s := New("p")
			s.Born(epoch.AddDate(0, 0, birth))
			s.DeathDate = epoch.AddDate(0, 0, birth+span)

			want := query >= birth && query < birth+span
			return s.IsActiveAt(epoch.AddDate(0, 0, query)) == want
		},
		gen.IntRange(0, 100),
		gen.IntRange(1, 100),
		gen.IntRange(-10, 250),
	))

	properties.TestingRun(t)
}
