package app

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("app already started")

	// ErrDestroyed is returned when starting an app that has been torn down
	// or that is torn down while it starts.
	ErrDestroyed = errors.New("app destroyed")

	// ErrUnknownAction is returned by Call for names no action was attached
	// under.
	ErrUnknownAction = errors.New("unknown action")

	// ErrDatabaseDisabled is returned by operations that need a database
	// connection when the database stage is disabled.
	ErrDatabaseDisabled = errors.New("database disabled")

	// ErrDropInProduction refuses to drop the database of a production
	// environment.
	ErrDropInProduction = errors.New("refusing to drop the database in production")
)

// StageError reports the lifecycle stage in which Start failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
