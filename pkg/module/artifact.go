package module

import (
	"context"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// Artifact is the value a module factory produces. Each variant reports the
// category it belongs to; the invoker keeps only artifacts of the category
// being invoked.
type Artifact interface {
	Kind() Kind
	ArtifactName() string
}

// Model binds a persistent type to a name. Value is typically a pointer to a
// gorm model struct.
type Model struct {
	Name  string
	Value any
	// AutoMigrate asks the database stage to run gorm AutoMigrate for Value
	// before the model is attached.
	AutoMigrate bool
}

func (*Model) Kind() Kind             { return KindModel }
func (m *Model) ArtifactName() string { return m.Name }

// Router registers routes on the API sub-router mounted under the
// configured prefix.
type Router struct {
	Name   string
	Routes func(r chi.Router)
}

func (*Router) Kind() Kind             { return KindRouter }
func (r *Router) ArtifactName() string { return r.Name }

// ActionFunc is the body of a business-logic action.
type ActionFunc func(ctx context.Context, input any) (any, error)

// Action is a named unit of business logic callable through the app.
type Action struct {
	Name string
	Run  ActionFunc
}

func (*Action) Kind() Kind             { return KindAction }
func (a *Action) ArtifactName() string { return a.Name }

// DBFunc runs against the app database handle.
type DBFunc func(ctx context.Context, db *gorm.DB) error

// Seed populates the database. Seeds run sequentially in sorted order.
type Seed struct {
	Name string
	Run  DBFunc
}

func (*Seed) Kind() Kind             { return KindSeed }
func (s *Seed) ArtifactName() string { return s.Name }

// TxMode controls whether a migration runs inside a transaction.
type TxMode int

const (
	// TxDefault defers to the database client: transactional everywhere
	// except SQLite.
	TxDefault TxMode = iota
	TxAlways
	TxNever
)

// Migration is an externally authored schema change.
type Migration struct {
	Name string
	Up   DBFunc
	Down DBFunc
	Tx   TxMode
}

func (*Migration) Kind() Kind             { return KindMigration }
func (m *Migration) ArtifactName() string { return m.Name }

// Callback is invoked when a lifecycle event is emitted.
type Callback func(ctx context.Context) error

// Hook maps lifecycle events to callbacks.
type Hook struct {
	Name string
	On   map[Event]Callback
}

func (*Hook) Kind() Kind             { return KindHook }
func (h *Hook) ArtifactName() string { return h.Name }

// Callback returns the callback registered for e, or nil.
func (h *Hook) Callback(e Event) Callback {
	if h == nil || h.On == nil {
		return nil
	}
	return h.On[e]
}

// UnknownEvents returns the subscribed events outside the lifecycle set,
// in a stable order.
func (h *Hook) UnknownEvents() []Event {
	var unknown []Event
	for e := range h.On {
		if !e.Valid() {
			unknown = append(unknown, e)
		}
	}
	sortEvents(unknown)
	return unknown
}
