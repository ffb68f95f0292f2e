//go:build property
// +build property

package metrics

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Mindburn-Labs/lexsim/pkg/evaluate"
)

func build(ids []int, outcomes []int) *Summary {
	s := NewSummary()
	for i := 0; i < len(ids) && i < len(outcomes); i++ {
		s.Record(evaluate.Result{StatuteID: fmt.Sprintf("s%d", ids[i]), Outcome: evaluate.Outcome(outcomes[i])})
	}
	return s
}

// TestMergeIsCommutativeAndAssociative verifies the fold used across steps
// and workers does not depend on grouping or order.
func TestMergeIsCommutativeAndAssociative(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	ids := gen.SliceOf(gen.IntRange(1, 3))
	outcomes := gen.SliceOf(gen.IntRange(0, 2))

	properties.Property("a+b == b+a", prop.ForAll(
		func(ia []int, oa []int, ib []int, ob []int) bool {
			a, b := build(ia, oa), build(ib, ob)
			ab := a.Clone()
			ab.Merge(b)
			ba := b.Clone()
			ba.Merge(a)
			return ab.Equal(ba)
		},
		ids, outcomes, ids, outcomes,
	))

	properties.Property("(a+b)+c == a+(b+c)", prop.ForAll(
		func(ia []int, oa []int, ib []int, ob []int) bool {
			a, b, c := build(ia, oa), build(ib, ob), build(ia, ob)

			left := a.Clone()
			left.Merge(b)
			left.Merge(c)

			bc := b.Clone()
			bc.Merge(c)
			right := a.Clone()
			right.Merge(bc)
			return left.Equal(right)
		},
		ids, outcomes, ids, outcomes,
	))

	properties.TestingRun(t)
}
