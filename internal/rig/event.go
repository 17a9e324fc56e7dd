package rig

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/relay-rig/internal/catalog"
)

// EventType names what happened to the rig.
type EventType string

const (
	EventConfigured EventType = "CONFIGURED"
	EventRejected   EventType = "REJECTED"
	EventFailed     EventType = "FAILED"
	EventCleaned    EventType = "CLEANED"
	EventReprofiled EventType = "REPROFILED"
	EventAquastat   EventType = "AQUASTAT"
	EventSense      EventType = "SENSE"
)

// Event describes one completed rig operation.
type Event struct {
	ID        string
	Timestamp time.Time
	Type      EventType
	Profile   catalog.Profile
	Config    string   // configuration name, if any
	Pins      []string // pins involved
	Result    string   // outcome or error text
}

// Notifier receives rig events. Implementations must not call back into
// the Rig.
type Notifier interface {
	Notify(Event) error
}

func (r *Rig) emit(typ EventType, config string, pins []string, result string) {
	if r.notifier == nil {
		return
	}
	ev := Event{
		ID:        uuid.NewString(),
		Timestamp: r.now(),
		Type:      typ,
		Profile:   r.profile,
		Config:    config,
		Pins:      pins,
		Result:    result,
	}
	if err := r.notifier.Notify(ev); err != nil {
		r.log.WithError(err).WithField("event", string(typ)).Warn("notify failed")
	}
}

// Notifiers fans an event out to several notifiers. Every notifier is
// called; errors are joined.
type Notifiers []Notifier

// Notify delivers ev to every notifier.
func (ns Notifiers) Notify(ev Event) error {
	var errs []error
	for _, n := range ns {
		if err := n.Notify(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
