// Command upnpctl is the sample CLI consumer spec.md §1 names as an
// out-of-scope-but-documented collaborator: serve a local device tree,
// discover remote devices, and invoke a remote action. Grounded on the
// teacher's cmd/ layout (a thin main wiring flags to a long-running
// server) and styled with spf13/cobra the way the broader Go ecosystem
// builds CLIs with subcommands.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/navidrome/goupnp-core/internal/config"
	"github.com/navidrome/goupnp-core/internal/upnplog"
)

// Exit codes spec.md §6 defines for a CLI consumer.
const (
	exitOK       = 0
	exitBindFail = 2
	exitConfig   = 3
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	var verbose bool

	root := &cobra.Command{
		Use:   "upnpctl",
		Short: "Run or query a UPnP device/control-point stack",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				upnplog.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	root.AddCommand(newServeCommand(&configPath))
	root.AddCommand(newDiscoverCommand(&configPath))
	root.AddCommand(newInvokeCommand(&configPath))
	return root
}

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, &configError{err}
	}
	return cfg, nil
}

// configError marks an error as spec.md §7's "configuration error"
// class, mapped to exit code 3.
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

// bindError marks an error as spec.md §7's "binding error" class,
// mapped to exit code 2.
type bindError struct{ err error }

func (e *bindError) Error() string { return e.err.Error() }
func (e *bindError) Unwrap() error { return e.err }

func exitCodeFor(err error) int {
	switch err.(type) {
	case *configError:
		return exitConfig
	case *bindError:
		return exitBindFail
	default:
		return exitBindFail
	}
}

func withCancelOnSignal(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}
