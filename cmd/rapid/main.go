// Command rapid runs an application built from discovered modules.
//
// Modules are compiled in: a project's main package imports its model,
// router, action, seed, migration and hook packages for their init
// registrations, then calls cli.Execute. This binary carries SQL migrations
// and seeds only.
package main

import (
	"fmt"
	"os"

	"github.com/marmos91/rapid/pkg/cli"
)

// Build-time variables injected via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
