package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordConversion(t *testing.T) {
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	old := "30000"

	tests := []struct {
		name string
		ev   Event
	}{
		{"birth", AgentBirth{AgentID: "a1", At: at}},
		{"death", AgentDeath{AgentID: "a1", At: at}},
		{"attribute with old value", AttributeChange{AgentID: "a1", At: at, Key: "income", Old: &old, New: "40000"}},
		{"attribute without old value", AttributeChange{AgentID: "a1", At: at, Key: "income", New: "40000"}},
		{"effective", StatuteEffective{StatuteID: "s1", At: at}},
		{"expired", StatuteExpired{StatuteID: "s1", At: at}},
		{"amended", StatuteAmended{StatuteID: "s1", At: at, Version: "1.1.0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ToRecord(tt.ev)
			require.Equal(t, tt.ev.Kind(), rec.Kind)
			require.Equal(t, at, rec.Date)

			back, err := FromRecord(rec)
			require.NoError(t, err)
			require.Equal(t, tt.ev, back)
			require.NotEmpty(t, Describe(back))
		})
	}
}

func TestFromRecordRejectsIncomplete(t *testing.T) {
	_, err := FromRecord(Record{Kind: KindAttributeChange, AgentID: "a1"})
	require.Error(t, err)

	_, err = FromRecord(Record{Kind: KindAgentBirth})
	require.Error(t, err)

	_, err = FromRecord(Record{Kind: "merger"})
	require.ErrorContains(t, err, "unknown event kind")
}

func TestDescribe(t *testing.T) {
	at := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "2024-07-01: statute s1 became effective", Describe(StatuteEffective{StatuteID: "s1", At: at}))
	require.Equal(t, `2024-07-01: agent a1 income = "100"`, Describe(AttributeChange{AgentID: "a1", At: at, Key: "income", New: "100"}))
}
