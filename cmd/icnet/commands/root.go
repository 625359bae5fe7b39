// Package commands defines the CLI command structure and flag bindings.
//
// The launcher is single-purpose: all launch flags live on the root command
// and running it performs the launch. Execution is delegated to the
// handlers package.
package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imamik/icnet/cmd/icnet/handlers"
	"github.com/imamik/icnet/internal/config"
	"github.com/imamik/icnet/internal/version"
)

// launch is swappable for tests.
var launch = handlers.Launch

// Root returns the root command for the icnet launcher.
//
// The effective interface version is resolved from the raw arguments and
// the environment before cobra parses anything, because it decides whether
// flags unknown to this launcher abort the parse or are demoted to
// warnings.
func Root() *cobra.Command {
	return rootWith(os.Args[1:], os.Getenv)
}

// rootWith is the testable constructor; args are the raw command-line
// arguments without the program name.
func rootWith(args []string, getenv func(string) string) *cobra.Command {
	var (
		flags            config.Flags
		interfaceVersion string
		configFile       string
	)

	negotiation, negotiateErr := version.Negotiate(version.RequestedFrom(args, getenv))

	cmd := &cobra.Command{
		Use:           "icnet",
		Short:         "Launch a local Internet Computer network",
		Long: `Launch a ready-to-use local Internet Computer network.

icnet spawns a pocket-ic server process, provisions subnets, canisters,
funding, latency injection, and regtest adapters over its configuration
port, and publishes a status record once the instance is fully ready.
Interrupting the launcher shuts the network down gracefully, preserving
the state directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, posArgs []string) error {
			if negotiateErr != nil {
				return handlers.NewExitError(handlers.ExitConfig, negotiateErr)
			}
			if negotiation.Policy == version.PolicyWarn {
				if unknown := unknownFlags(cmd, args); len(unknown) > 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: unknown launcher parameters: %v\n", unknown)
				}
			} else if len(posArgs) > 0 {
				return handlers.NewExitError(handlers.ExitConfig,
					fmt.Errorf("unexpected argument %q", posArgs[0]))
			}

			var file *config.File
			if configFile != "" {
				var err error
				file, err = config.LoadFile(configFile)
				if err != nil {
					return handlers.NewExitError(handlers.ExitConfig, err)
				}
			}

			cfg, err := config.Build(flags, cmd.Flags().Changed, file, negotiation.Explicit)
			if err != nil {
				return handlers.NewExitError(handlers.ExitConfig, err)
			}
			return launch(cmd.Context(), cfg)
		},
	}
	if negotiateErr == nil && negotiation.Policy == version.PolicyWarn {
		cmd.FParseErrWhitelist = cobra.FParseErrWhitelist{UnknownFlags: true}
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return handlers.NewExitError(handlers.ExitConfig, err)
	})

	f := cmd.Flags()
	f.UintVar(&flags.GatewayPort, "gateway-port", 0, "HTTP gateway port (default: chosen by the server)")
	f.UintVar(&flags.ConfigPort, "config-port", 0, "configuration port (default: ephemeral)")
	f.StringVar(&flags.Bind, "bind", "", "IP address to bind (default: loopback)")
	f.StringVar(&flags.StateDir, "state-dir", "", "instance state directory to preserve across runs")
	f.UintVar(&flags.ArtificialDelayMs, "artificial-delay-ms", 0, "update-call latency injection in milliseconds")
	f.StringArrayVar(&flags.Subnets, "subnet", nil, "subnet kind to create (repeatable): application, system, verified-application, bitcoin, fiduciary, nns, sns")
	f.StringArrayVar(&flags.BitcoindAddrs, "bitcoind-addr", nil, "bitcoind regtest adapter address (repeatable, implies a bitcoin subnet)")
	f.StringArrayVar(&flags.DogecoindAddrs, "dogecoind-addr", nil, "dogecoind regtest adapter address (repeatable, implies a bitcoin subnet)")
	f.BoolVar(&flags.II, "ii", false, "install the Internet Identity canisters")
	f.BoolVar(&flags.NNS, "nns", false, "install the NNS and SNS canisters (implies --ii and an sns subnet)")
	f.StringVar(&flags.ServerPath, "pocketic-server-path", "", "path to the pocket-ic server binary (default: next to the launcher)")
	f.StringVar(&flags.StdoutFile, "stdout-file", "", "redirect server stdout to this file")
	f.StringVar(&flags.StderrFile, "stderr-file", "", "redirect server stderr to this file")
	f.StringVar(&flags.StatusDir, "status-dir", "", "directory to publish status.json to once ready (requires --interface-version)")
	f.BoolVar(&flags.Verbose, "verbose", false, "enable verbose diagnostics")
	f.StringVar(&interfaceVersion, version.InterfaceVersionFlag, "", "CLI interface version the consumer was written against")
	f.StringVarP(&configFile, "config", "c", "", "path to a YAML file with launch defaults (flags take precedence)")

	cmd.AddCommand(Version())

	return cmd
}

// unknownFlags lists flag names in args that this launcher does not define.
// Used only under the warn policy, where the parser skips them silently.
func unknownFlags(cmd *cobra.Command, args []string) []string {
	var unknown []string
	flags := cmd.Flags()
	for _, arg := range args {
		if arg == "--" {
			break
		}
		switch {
		case strings.HasPrefix(arg, "--"):
			name := strings.TrimPrefix(arg, "--")
			if i := strings.Index(name, "="); i >= 0 {
				name = name[:i]
			}
			if name != "" && flags.Lookup(name) == nil {
				unknown = append(unknown, "--"+name)
			}
		case strings.HasPrefix(arg, "-") && len(arg) > 1:
			short := strings.TrimPrefix(arg, "-")
			if i := strings.Index(short, "="); i >= 0 {
				short = short[:i]
			}
			if len(short) == 1 && flags.ShorthandLookup(short) == nil {
				unknown = append(unknown, "-"+short)
			}
		}
	}
	return unknown
}
