package schedule

import (
	"testing"
	"time"

	"github.com/Mindburn-Labs/lexsim/pkg/agent"
	"github.com/Mindburn-Labs/lexsim/pkg/event"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestDueDrainsInDateOrder(t *testing.T) {
	q := NewQueue()
	q.Schedule(
		event.AttributeChange{AgentID: "a1", At: day("2024-03-01"), Key: "income", New: "3"},
		event.AttributeChange{AgentID: "a1", At: day("2024-01-01"), Key: "income", New: "1"},
		event.AttributeChange{AgentID: "a1", At: day("2024-02-01"), Key: "income", New: "2"},
		event.AttributeChange{AgentID: "a1", At: day("2024-01-01"), Key: "income", New: "1b"},
	)

	due := q.Due(day("2024-02-01"))
	require.Len(t, due, 3)
	require.Equal(t, "1", due[0].(event.AttributeChange).New)
	require.Equal(t, "1b", due[1].(event.AttributeChange).New)
	require.Equal(t, "2", due[2].(event.AttributeChange).New)
	require.Equal(t, 1, q.Len())

	require.Empty(t, q.Due(day("2024-02-15")))
	require.Len(t, q.Due(day("2024-12-31")), 1)
}

func TestProcessEventsAppliesToPopulation(t *testing.T) {
	pop := agent.NewPopulation()
	pop.Add(agent.New("a1"))

	q := NewQueue()
	q.Schedule(
		event.AgentBirth{AgentID: "baby", At: day("2024-01-10")},
		event.AttributeChange{AgentID: "a1", At: day("2024-01-05"), Key: "income", New: "42000"},
		event.AgentDeath{AgentID: "a1", At: day("2024-01-20")},
		event.StatuteEffective{StatuteID: "s1", At: day("2024-01-01")},
	)

	processed := q.ProcessEvents(day("2024-01-31"), pop)
	require.Len(t, processed, 4)
	require.Equal(t, event.KindStatuteEffective, processed[0].Kind())

	a1, ok := pop.Get("a1")
	require.True(t, ok)
	require.False(t, a1.Active)
	require.Equal(t, day("2024-01-20"), a1.DeathDate)
	require.Equal(t, "42000", a1.Attributes["income"])

	baby, ok := pop.Get("baby")
	require.True(t, ok)
	require.True(t, baby.Active)
	require.Equal(t, day("2024-01-10"), baby.BirthDate)

	require.Nil(t, q.ProcessEvents(day("2024-12-31"), pop))
}

func TestRewindReplaysJournal(t *testing.T) {
	q := NewQueue()
	q.Schedule(
		event.AgentDeath{AgentID: "a1", At: day("2024-05-01")},
		event.AgentBirth{AgentID: "a2", At: day("2024-02-01")},
	)
	hash, err := q.SnapshotHash()
	require.NoError(t, err)

	require.Len(t, q.Due(day("2024-12-31")), 2)
	require.Equal(t, 0, q.Len())

	q.Rewind()
	require.Equal(t, 2, q.Len())
	rewound, err := q.SnapshotHash()
	require.NoError(t, err)
	require.Equal(t, hash, rewound)

	pending := q.Pending()
	require.Equal(t, event.KindAgentBirth, pending[0].Kind())
	require.Equal(t, 2, q.Len())

	q.Schedule(event.AgentBirth{AgentID: "a3", At: day("2024-03-01")})
	changed, err := q.SnapshotHash()
	require.NoError(t, err)
	require.NotEqual(t, hash, changed)
}
