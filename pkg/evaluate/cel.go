package evaluate

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/Mindburn-Labs/lexsim/pkg/agent"
	"github.com/Mindburn-Labs/lexsim/pkg/statute"
)

// DateAttribute is the attribute the engine injects into every entity view.
const DateAttribute = "current_date"

// CEL evaluates rule conditions written in the Common Expression Language.
//
// Expressions see three variables: entity (the view's attributes, with
// numeric and boolean strings coerced to their typed values), agent_id and
// date (the simulation date as a timestamp).
type CEL struct {
	env      *cel.Env
	prgCache map[string]cel.Program
	mu       sync.RWMutex
}

// NewCEL creates an evaluator with the standard rule environment.
func NewCEL() (*CEL, error) {
	env, err := cel.NewEnv(
		cel.Variable("entity", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("agent_id", cel.StringType),
		cel.Variable("date", cel.TimestampType),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &CEL{
		env:      env,
		prgCache: make(map[string]cel.Program),
	}, nil
}

// Check compiles expr and reports whether it is a valid boolean expression.
func (c *CEL) Check(expr string) error {
	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("compile: %w", issues.Err())
	}
	if t := ast.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
		return fmt.Errorf("expression must be bool, got %s", t)
	}
	return nil
}

// Evaluate implements Evaluator. Evaluation errors yield a Void result
// carrying the error as its reason.
func (c *CEL) Evaluate(ctx context.Context, view agent.View, rule statute.Rule) Result {
	res := Result{
		StatuteID: rule.ID,
		AgentID:   view.ID,
		Version:   rule.Version,
		Effect:    rule.Effect,
	}
	input := activation(view)

	if rule.Condition != "" {
		ok, err := c.evaluateExpr(ctx, rule.Condition, input)
		if err != nil {
			res.Reason = "condition: " + err.Error()
			return res
		}
		if !ok {
			res.Reason = "not applicable"
			return res
		}
	}

	if rule.Discretion != "" {
		ok, err := c.evaluateExpr(ctx, rule.Discretion, input)
		if err != nil {
			res.Reason = "discretion: " + err.Error()
			return res
		}
		if ok {
			res.Outcome = Discretionary
			return res
		}
	}

	res.Outcome = Deterministic
	return res
}

func (c *CEL) evaluateExpr(ctx context.Context, expr string, input map[string]any) (bool, error) {
	c.mu.RLock()
	prg, hit := c.prgCache[expr]
	c.mu.RUnlock()

	if !hit {
		c.mu.Lock()
		// Double check
		if prg, hit = c.prgCache[expr]; !hit {
			ast, issues := c.env.Compile(expr)
			if issues != nil && issues.Err() != nil {
				c.mu.Unlock()
				return false, fmt.Errorf("compile: %w", issues.Err())
			}
			p, err := c.env.Program(ast,
				cel.InterruptCheckFrequency(100),
				cel.CostLimit(10000),
			)
			if err != nil {
				c.mu.Unlock()
				return false, fmt.Errorf("program: %w", err)
			}
			c.prgCache[expr] = p
			prg = p
		}
		c.mu.Unlock()
	}

	out, _, err := prg.ContextEval(ctx, input)
	if err != nil {
		return false, fmt.Errorf("eval: %w", err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("result not bool")
	}
	return val, nil
}

func activation(view agent.View) map[string]any {
	entity := make(map[string]any, len(view.Attributes))
	for k, v := range view.Attributes {
		entity[k] = coerce(v)
	}

	var date time.Time
	if raw, ok := view.Attributes[DateAttribute]; ok {
		if d, err := time.Parse(time.DateOnly, raw); err == nil {
			date = d
		}
	}

	return map[string]any{
		"entity":   entity,
		"agent_id": view.ID,
		"date":     date,
	}
}

func coerce(v string) any {
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	switch v {
	case "true":
		return true
	case "false":
		return false
	}
	return v
}
