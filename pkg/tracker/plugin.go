package tracker

import "ktrace/pkg/models"

// Plugin is registered on a tracker and may implement any of the optional
// hook interfaces below. Hooks run in registration order.
type Plugin interface {
	Name() string
}

// BeforeTracker may replace an event or veto it by returning false. A veto
// stops the chain and discards the event.
type BeforeTracker interface {
	BeforeTrack(e models.Event) (models.Event, bool)
}

// AfterTracker observes every event once it has been queued.
type AfterTracker interface {
	AfterTrack(e models.Event)
}

type Initializer interface {
	Init(t *Tracker) error
}

type Destroyer interface {
	Destroy()
}

// Hooks builds a plugin from plain functions. Nil fields are no-ops.
type Hooks struct {
	PluginName string
	Before     func(models.Event) (models.Event, bool)
	After      func(models.Event)
	OnInit     func(*Tracker) error
	OnDestroy  func()
}

func (h Hooks) Name() string {
	return h.PluginName
}

func (h Hooks) BeforeTrack(e models.Event) (models.Event, bool) {
	if h.Before == nil {
		return e, true
	}
	return h.Before(e)
}

func (h Hooks) AfterTrack(e models.Event) {
	if h.After != nil {
		h.After(e)
	}
}

func (h Hooks) Init(t *Tracker) error {
	if h.OnInit == nil {
		return nil
	}
	return h.OnInit(t)
}

func (h Hooks) Destroy() {
	if h.OnDestroy != nil {
		h.OnDestroy()
	}
}
