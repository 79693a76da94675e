package models

import (
	"time"

	"github.com/google/uuid"
)

type EventBuilder struct {
	event *Event
}

func NewEventBuilder() *EventBuilder {
	return &EventBuilder{
		event: &Event{
			Type: EventTypeCustom,
		},
	}
}

func (b *EventBuilder) WithID(id string) *EventBuilder {
	b.event.ID = id
	return b
}

func (b *EventBuilder) WithType(t EventType) *EventBuilder {
	b.event.Type = t
	return b
}

func (b *EventBuilder) WithName(name string) *EventBuilder {
	b.event.Name = name
	return b
}

func (b *EventBuilder) WithTimestamp(ts time.Time) *EventBuilder {
	b.event.Timestamp = ts.UnixMilli()
	return b
}

// WithProperties copies props so later caller mutation does not leak into the event.
func (b *EventBuilder) WithProperties(props map[string]interface{}) *EventBuilder {
	b.event.Properties = make(map[string]interface{}, len(props))
	for k, v := range props {
		b.event.Properties[k] = v
	}
	return b
}

func (b *EventBuilder) WithUserID(userID string) *EventBuilder {
	b.event.UserID = userID
	return b
}

func (b *EventBuilder) WithSessionID(sessionID string) *EventBuilder {
	b.event.SessionID = sessionID
	return b
}

func (b *EventBuilder) WithDeviceInfo(info *DeviceInfo) *EventBuilder {
	if info == nil {
		b.event.DeviceInfo = nil
		return b
	}
	d := *info
	b.event.DeviceInfo = &d
	return b
}

func (b *EventBuilder) Build() Event {
	if b.event.ID == "" {
		b.event.ID = uuid.NewString()
	}
	if b.event.Timestamp == 0 {
		b.event.Timestamp = time.Now().UnixMilli()
	}
	if b.event.Properties == nil {
		b.event.Properties = make(map[string]interface{})
	}
	return *b.event
}
