// Package events defines the closed set of events the mail core publishes
// and a typed callback registry to deliver them.
//
// Subscribers register per variant:
//
//	bus := events.NewBus()
//	events.Subscribe(bus, func(e events.SyncCompleted) {
//	    fmt.Println(e.AccountID, e.Success)
//	})
//
// Handlers run synchronously on the publishing goroutine, in registration
// order. A handler that needs to do slow work should hand it off itself.
package events

import (
	"sync"
	"time"

	"github.com/dmitrijs2005/gophmail/internal/client/models"
)

// Kind discriminates Event variants.
type Kind int

const (
	KindKeyCreated Kind = iota + 1
	KindMasterPasswordChanged
	KindSyncStarted
	KindSyncCompleted
	KindNewMessage
	KindNotification
)

// Event is implemented only by the types in this package.
type Event interface {
	Kind() Kind
	sealed()
}

type KeyCreated struct {
	KeyID     int64
	AccountID int64
	CreatedAt time.Time
}

type MasterPasswordChanged struct {
	When time.Time
}

type SyncStarted struct {
	AccountID int64
}

type SyncCompleted struct {
	AccountID int64
	Success   bool
	Details   string
}

type NewMessage struct {
	Summary models.MessageSummary
}

// Level is the severity of a Notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a user-visible message, e.g. an encryption fallback.
type Notification struct {
	Level   Level
	Message string
	Err     error
}

func (KeyCreated) Kind() Kind            { return KindKeyCreated }
func (MasterPasswordChanged) Kind() Kind { return KindMasterPasswordChanged }
func (SyncStarted) Kind() Kind           { return KindSyncStarted }
func (SyncCompleted) Kind() Kind         { return KindSyncCompleted }
func (NewMessage) Kind() Kind            { return KindNewMessage }
func (Notification) Kind() Kind          { return KindNotification }

func (KeyCreated) sealed()            {}
func (MasterPasswordChanged) sealed() {}
func (SyncStarted) sealed()           {}
func (SyncCompleted) sealed()         {}
func (NewMessage) sealed()            {}
func (Notification) sealed()          {}

// Publisher is what services depend on.
type Publisher interface {
	Publish(e Event)
}

// Bus is a Publisher with per-kind handler lists. The zero value is not
// usable; use NewBus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]func(Event)
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[Kind][]func(Event))}
}

// Subscribe registers fn for events of type E.
func Subscribe[E Event](b *Bus, fn func(E)) {
	var zero E
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[zero.Kind()] = append(b.handlers[zero.Kind()], func(e Event) {
		fn(e.(E))
	})
}

// SubscribeAll registers fn for every kind.
func (b *Bus) SubscribeAll(fn func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k := KindKeyCreated; k <= KindNotification; k++ {
		b.handlers[k] = append(b.handlers[k], fn)
	}
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	hs := b.handlers[e.Kind()]
	b.mu.RUnlock()

	for _, h := range hs {
		h(e)
	}
}

// Recorder is a Publisher that keeps every event. Used by tests and the CLI
// history view.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a snapshot of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfKind filters recorded events by type.
func OfKind[E Event](r *Recorder) []E {
	var out []E
	for _, e := range r.Events() {
		if v, ok := e.(E); ok {
			out = append(out, v)
		}
	}
	return out
}
