package event

import (
	"fmt"
	"time"
)

// Record is the flat serialized form of an Event.
type Record struct {
	Kind      Kind      `json:"kind" yaml:"kind"`
	Date      time.Time `json:"date" yaml:"date"`
	AgentID   string    `json:"agent_id,omitempty" yaml:"agent_id,omitempty"`
	StatuteID string    `json:"statute_id,omitempty" yaml:"statute_id,omitempty"`
	Key       string    `json:"key,omitempty" yaml:"key,omitempty"`
	Old       *string   `json:"old,omitempty" yaml:"old,omitempty"`
	New       string    `json:"new,omitempty" yaml:"new,omitempty"`
	Version   string    `json:"version,omitempty" yaml:"version,omitempty"`
}

// ToRecord flattens an event.
func ToRecord(e Event) Record {
	r := Record{Kind: e.Kind(), Date: e.Date()}
	switch ev := e.(type) {
	case AgentBirth:
		r.AgentID = ev.AgentID
	case AgentDeath:
		r.AgentID = ev.AgentID
	case AttributeChange:
		r.AgentID = ev.AgentID
		r.Key = ev.Key
		r.Old = ev.Old
		r.New = ev.New
	case StatuteEffective:
		r.StatuteID = ev.StatuteID
	case StatuteExpired:
		r.StatuteID = ev.StatuteID
	case StatuteAmended:
		r.StatuteID = ev.StatuteID
		r.Version = ev.Version
	}
	return r
}

// FromRecord rebuilds the event a Record describes.
func FromRecord(r Record) (Event, error) {
	switch r.Kind {
	case KindAgentBirth:
		if r.AgentID == "" {
			return nil, fmt.Errorf("event %s: agent_id is required", r.Kind)
		}
		return AgentBirth{AgentID: r.AgentID, At: r.Date}, nil
	case KindAgentDeath:
		if r.AgentID == "" {
			return nil, fmt.Errorf("event %s: agent_id is required", r.Kind)
		}
		return AgentDeath{AgentID: r.AgentID, At: r.Date}, nil
	case KindAttributeChange:
		if r.AgentID == "" || r.Key == "" {
			return nil, fmt.Errorf("event %s: agent_id and key are required", r.Kind)
		}
		return AttributeChange{AgentID: r.AgentID, At: r.Date, Key: r.Key, Old: r.Old, New: r.New}, nil
	case KindStatuteEffective:
		return StatuteEffective{StatuteID: r.StatuteID, At: r.Date}, nil
	case KindStatuteExpired:
		return StatuteExpired{StatuteID: r.StatuteID, At: r.Date}, nil
	case KindStatuteAmended:
		return StatuteAmended{StatuteID: r.StatuteID, At: r.Date, Version: r.Version}, nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", r.Kind)
	}
}
