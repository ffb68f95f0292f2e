// Package evaluate classifies how a statute version applies to an entity.
package evaluate

import (
	"context"

	"github.com/Mindburn-Labs/lexsim/pkg/agent"
	"github.com/Mindburn-Labs/lexsim/pkg/statute"
)

// Outcome is the classification of one rule application.
type Outcome int

const (
	// Void means the rule does not apply or could not be evaluated.
	Void Outcome = iota
	// Deterministic means the effect follows automatically.
	Deterministic
	// Discretionary means the effect is left to an authority's judgement.
	Discretionary
)

func (o Outcome) String() string {
	switch o {
	case Deterministic:
		return "deterministic"
	case Discretionary:
		return "discretionary"
	default:
		return "void"
	}
}

// Result is the classified application of one rule to one entity.
type Result struct {
	StatuteID string
	AgentID   string
	Version   string
	Outcome   Outcome
	Effect    statute.Effect
	Reason    string
}

// Evaluator applies a rule version to an entity view. Implementations must
// be safe for concurrent use and must not modify the view.
type Evaluator interface {
	Evaluate(ctx context.Context, view agent.View, rule statute.Rule) Result
}

// Func adapts a function to Evaluator.
type Func func(ctx context.Context, view agent.View, rule statute.Rule) Result

// Evaluate implements Evaluator.
func (f Func) Evaluate(ctx context.Context, view agent.View, rule statute.Rule) Result {
	return f(ctx, view, rule)
}
