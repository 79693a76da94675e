package models

import (
	"time"
)

type EventType string

const (
	EventTypePageView    EventType = "page_view"
	EventTypeClick       EventType = "click"
	EventTypeCustom      EventType = "custom"
	EventTypeError       EventType = "error"
	EventTypePerformance EventType = "performance"
	EventTypeLifecycle   EventType = "lifecycle"
)

func (t EventType) Valid() bool {
	switch t {
	case EventTypePageView, EventTypeClick, EventTypeCustom,
		EventTypeError, EventTypePerformance, EventTypeLifecycle:
		return true
	}
	return false
}

// Event is one tracked occurrence. Values are treated as immutable once they
// leave the tracker: mutate a Clone instead.
type Event struct {
	ID         string                 `json:"id"`
	Type       EventType              `json:"type"`
	Name       string                 `json:"name"`
	Timestamp  int64                  `json:"timestamp"` // unix milliseconds
	Properties map[string]interface{} `json:"properties,omitempty"`
	UserID     string                 `json:"userId,omitempty"`
	SessionID  string                 `json:"sessionId,omitempty"`
	DeviceInfo *DeviceInfo            `json:"deviceInfo,omitempty"`
}

func (e Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Clone returns a copy that shares no maps or pointers with e. Property values
// themselves are copied shallowly.
func (e Event) Clone() Event {
	out := e
	if e.Properties != nil {
		out.Properties = make(map[string]interface{}, len(e.Properties))
		for k, v := range e.Properties {
			out.Properties[k] = v
		}
	}
	if e.DeviceInfo != nil {
		d := *e.DeviceInfo
		out.DeviceInfo = &d
	}
	return out
}

// WithProperty returns a clone of e with key set to value.
func (e Event) WithProperty(key string, value interface{}) Event {
	out := e.Clone()
	if out.Properties == nil {
		out.Properties = make(map[string]interface{}, 1)
	}
	out.Properties[key] = value
	return out
}

func EventIDs(events []Event) []string {
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	return ids
}

type DeviceInfo struct {
	OS             string `json:"os"`
	OSVersion      string `json:"osVersion"`
	DeviceModel    string `json:"deviceModel,omitempty"`
	ScreenWidth    int    `json:"screenWidth,omitempty"`
	ScreenHeight   int    `json:"screenHeight,omitempty"`
	ViewportWidth  int    `json:"viewportWidth,omitempty"`
	ViewportHeight int    `json:"viewportHeight,omitempty"`
	Browser        string `json:"browser,omitempty"`
	BrowserVersion string `json:"browserVersion,omitempty"`
	Network        string `json:"network,omitempty"`
}

const (
	ErrorCategoryPanic       = "panic"
	ErrorCategoryHTTP        = "http_error"
	ErrorCategoryHTTPRequest = "http_request_error"
	ErrorCategoryManual      = "manual"
)

type ErrorInfo struct {
	Name     string                 `json:"name"`
	Message  string                 `json:"message"`
	Stack    string                 `json:"stack,omitempty"`
	Context  map[string]interface{} `json:"context,omitempty"`
	Category string                 `json:"category,omitempty"`
}

func (e ErrorInfo) Error() string {
	if e.Name == "" {
		return e.Message
	}
	return e.Name + ": " + e.Message
}
