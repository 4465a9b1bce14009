package app

// State is the lifecycle state of an App.
type State int32

const (
	StateCreated State = iota
	StateStarting
	StateRunning
	StateDestroying
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDestroying:
		return "destroying"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Stage names reported in StageError, logs, spans and metrics.
const (
	StageValidate  = "validate"
	StageResolve   = "resolve"
	StageHooks     = "hooks"
	StageStart     = "start"
	StageActions   = "actions"
	StageDatabase  = "database"
	StageWebserver = "webserver"
	StageReady     = "ready"
)
