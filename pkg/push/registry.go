package push

import (
	"fmt"
	"github.com/mattfenwick/collections/pkg/slice"
	"github.com/pkg/errors"
	"github.com/scanserver/scanner-client/pkg/telemetry"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"sync"
)

type Listener func(event *Event) error

// Subscription identifies one registered listener, so it can be removed with Off.
type Subscription struct {
	Kind EventKind
	id   uint64
}

type registration struct {
	id       uint64
	listener Listener
}

// Registry maps event kinds to ordered lists of listeners.
type Registry struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[EventKind][]*registration
}

func NewRegistry() *Registry {
	return &Registry{listeners: map[EventKind][]*registration{}}
}

func (r *Registry) On(kind EventKind, listener Listener) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.listeners[kind] = append(r.listeners[kind], &registration{id: r.nextID, listener: listener})
	if !kind.IsKnown() {
		logrus.Debugf("registered listener for unrecognized event kind %s", kind)
	}
	return Subscription{Kind: kind, id: r.nextID}
}

// Off removes a single listener; it returns false if the subscription was not found.
func (r *Registry) Off(sub Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	regs := r.listeners[sub.Kind]
	for i, reg := range regs {
		if reg.id == sub.id {
			r.listeners[sub.Kind] = append(regs[:i:i], regs[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveAllListeners empties the lists for the given kinds, or every list if no kind is given.
func (r *Registry) RemoveAllListeners(kinds ...EventKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(kinds) == 0 {
		r.listeners = map[EventKind][]*registration{}
		return
	}
	for _, kind := range kinds {
		delete(r.listeners, kind)
	}
}

func (r *Registry) Count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners[kind])
}

// Kinds returns the sorted kinds which currently have at least one listener.
func (r *Registry) Kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kinds []EventKind
	for _, kind := range maps.Keys(r.listeners) {
		if len(r.listeners[kind]) > 0 {
			kinds = append(kinds, kind)
		}
	}
	return slice.SortOn(func(k EventKind) string { return string(k) }, kinds)
}

// Dispatch invokes every listener registered for the event's kind, in
// registration order.  A failing or panicking listener is logged and skipped.
// Returns the number of listeners which completed without failure.
func (r *Registry) Dispatch(event *Event) int {
	r.mu.Lock()
	regs := make([]*registration, len(r.listeners[event.Kind]))
	copy(regs, r.listeners[event.Kind])
	r.mu.Unlock()

	if len(regs) == 0 {
		logrus.Tracef("no listeners for event %s, dropping", event.Kind)
		return 0
	}

	succeeded := 0
	for _, reg := range regs {
		if err := invoke(reg.listener, event); err != nil {
			telemetry.RecordEvent("listener failure", string(event.Kind), err)
			logrus.Errorf("listener for event %s failed: %+v", event.Kind, err)
			continue
		}
		succeeded++
	}
	return succeeded
}

func invoke(listener Listener, event *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("listener panicked: %s", fmt.Sprint(r))
		}
	}()
	return listener(event)
}
