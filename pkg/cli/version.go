package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "rapid %s\n", Version)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  commit:  %s\n", Commit)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  built:   %s\n", Date)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  go:      %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
