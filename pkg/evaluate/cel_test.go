package evaluate

import (
	"context"
	"sync"
	"testing"

	"github.com/Mindburn-Labs/lexsim/pkg/agent"
	"github.com/Mindburn-Labs/lexsim/pkg/statute"
	"github.com/stretchr/testify/require"
)

func view(attrs map[string]string) agent.View {
	return agent.View{ID: "a1", Attributes: attrs}
}

func TestCELEvaluate(t *testing.T) {
	ev, err := NewCEL()
	require.NoError(t, err)

	adult := statute.Rule{
		ID:         "adult-benefit",
		Version:    "1.0.0",
		Condition:  "entity.age >= 18",
		Discretion: "entity.income > 50000.5",
		Effect:     statute.Effect{Kind: statute.EffectGrant},
	}

	tests := []struct {
		name    string
		attrs   map[string]string
		rule    statute.Rule
		outcome Outcome
		reason  string
	}{
		{
			name:    "condition holds",
			attrs:   map[string]string{"age": "25", "income": "30000"},
			rule:    adult,
			outcome: Deterministic,
		},
		{
			name:    "discretion holds",
			attrs:   map[string]string{"age": "40", "income": "90000"},
			rule:    adult,
			outcome: Discretionary,
		},
		{
			name:    "condition fails",
			attrs:   map[string]string{"age": "12", "income": "0"},
			rule:    adult,
			outcome: Void,
			reason:  "not applicable",
		},
		{
			name:    "missing attribute is void",
			attrs:   map[string]string{"income": "10"},
			rule:    adult,
			outcome: Void,
			reason:  "condition:",
		},
		{
			name:    "empty condition applies to everyone",
			attrs:   map[string]string{},
			rule:    statute.Rule{ID: "universal", Version: "1.0.0"},
			outcome: Deterministic,
		},
		{
			name:    "date variable",
			attrs:   map[string]string{DateAttribute: "2024-07-01"},
			rule:    statute.Rule{ID: "dated", Condition: `date >= timestamp("2024-07-01T00:00:00Z")`},
			outcome: Deterministic,
		},
		{
			name:    "string and bool attributes",
			attrs:   map[string]string{"region": "north", "resident": "true"},
			rule:    statute.Rule{ID: "regional", Condition: `entity.region == "north" && entity.resident`},
			outcome: Deterministic,
		},
		{
			name:    "non bool result is void",
			attrs:   map[string]string{"age": "30"},
			rule:    statute.Rule{ID: "broken", Condition: "entity.age + 1"},
			outcome: Void,
			reason:  "condition:",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ev.Evaluate(context.Background(), view(tt.attrs), tt.rule)
			require.Equal(t, tt.outcome, res.Outcome, res.Reason)
			require.Equal(t, tt.rule.ID, res.StatuteID)
			require.Equal(t, "a1", res.AgentID)
			if tt.reason != "" {
				require.Contains(t, res.Reason, tt.reason)
			}
		})
	}
}

func TestCELCheck(t *testing.T) {
	ev, err := NewCEL()
	require.NoError(t, err)

	require.NoError(t, ev.Check("entity.age >= 65"))
	require.Error(t, ev.Check("entity.age >="))
	require.Error(t, ev.Check(`"text"`))
}

func TestCELConcurrentCache(t *testing.T) {
	ev, err := NewCEL()
	require.NoError(t, err)
	rule := statute.Rule{ID: "r", Condition: "entity.age > 10"}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := ev.Evaluate(context.Background(), view(map[string]string{"age": "20"}), rule)
			require.Equal(t, Deterministic, res.Outcome)
		}()
	}
	wg.Wait()
	require.Len(t, ev.prgCache, 1)
}

func TestOutcomeString(t *testing.T) {
	require.Equal(t, "deterministic", Deterministic.String())
	require.Equal(t, "discretionary", Discretionary.String())
	require.Equal(t, "void", Void.String())
}
