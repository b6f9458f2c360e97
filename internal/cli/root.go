// Package cli assembles run configuration from flags and drives the core.
// The core packages never touch flags; this layer only builds structs and
// picks output destinations.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand creates the root command.
func NewRootCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "postman2burp",
		Short:   "Replay Postman collections through an intercepting proxy",
		Long: "postman2burp replays a Postman collection through an intercepting proxy\n" +
			"(Burp, ZAP, mitmproxy), substituting variables, applying encodings and\n" +
			"authentication, and recording every request and response.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewExtractCommand())
	cmd.AddCommand(NewProxyCheckCommand())

	return cmd
}
