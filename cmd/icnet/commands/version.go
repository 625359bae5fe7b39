package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imamik/icnet/internal/version"
)

var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// SetVersionInfo sets the version information from main.
func SetVersionInfo(v, c, d string) {
	buildVersion = v
	buildCommit = c
	buildDate = d
}

// Version returns the version command.
func Version() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("icnet %s\n", buildVersion)
			fmt.Printf("  interface: %s\n", version.Supported)
			fmt.Printf("  commit:    %s\n", buildCommit)
			fmt.Printf("  built:     %s\n", buildDate)
		},
	}
}
