package module

// Event is a lifecycle event a hook may subscribe to.
type Event string

const (
	BeforeStart      Event = "beforeStart"
	AfterStart       Event = "afterStart"
	BeforeActions    Event = "beforeActions"
	AfterActions     Event = "afterActions"
	BeforeDatabase   Event = "beforeDatabase"
	AfterDatabase    Event = "afterDatabase"
	BeforeMigrations Event = "beforeMigrations"
	AfterMigrations  Event = "afterMigrations"
	BeforeModels     Event = "beforeModels"
	AfterModels      Event = "afterModels"
	BeforeSeeds      Event = "beforeSeeds"
	AfterSeeds       Event = "afterSeeds"
	BeforeWebserver  Event = "beforeWebserver"
	AfterWebserver   Event = "afterWebserver"
	BeforeMiddleware Event = "beforeMiddleware"
	AfterMiddleware  Event = "afterMiddleware"
	BeforeRoutes     Event = "beforeRoutes"
	AfterRoutes      Event = "afterRoutes"
	BeforeListen     Event = "beforeListen"
	AfterListen      Event = "afterListen"
	BeforeDestroy    Event = "beforeDestroy"
	AfterDestroy     Event = "afterDestroy"
)

var events = []Event{
	BeforeStart,
	BeforeActions, AfterActions,
	BeforeDatabase,
	BeforeMigrations, AfterMigrations,
	BeforeModels, AfterModels,
	BeforeSeeds, AfterSeeds,
	AfterDatabase,
	BeforeWebserver,
	BeforeMiddleware, AfterMiddleware,
	BeforeRoutes, AfterRoutes,
	BeforeListen, AfterListen,
	AfterWebserver,
	AfterStart,
	BeforeDestroy, AfterDestroy,
}

var validEvents = func() map[Event]struct{} {
	m := make(map[Event]struct{}, len(events))
	for _, e := range events {
		m[e] = struct{}{}
	}
	return m
}()

// Events returns every lifecycle event in the order a full start followed
// by a destroy emits them.
func Events() []Event {
	return append([]Event(nil), events...)
}

// Valid reports whether e belongs to the lifecycle event set.
func (e Event) Valid() bool {
	_, ok := validEvents[e]
	return ok
}

func (e Event) String() string { return string(e) }
