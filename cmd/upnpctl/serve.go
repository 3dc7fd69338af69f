package main

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/navidrome/goupnp-core/internal/upnplog"
	"github.com/navidrome/goupnp-core/transport"
)

func newServeCommand(configPath *string) *cobra.Command {
	var ifaceNames []string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Advertise registered local devices and serve control/eventing traffic",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			svc, err := InitializeService(cfg)
			if err != nil {
				return &bindError{fmt.Errorf("build service: %w", err)}
			}

			ifaces, err := transport.Interfaces(ifaceNames, cfg.ExcludeInterfaces)
			if err != nil {
				return &bindError{err}
			}
			if len(ifaces) == 0 {
				return &bindError{fmt.Errorf("no multicast-capable interfaces available")}
			}

			ctx, cancel := withCancelOnSignal(cmd.Context())
			defer cancel()

			if err := svc.Start(ctx, ifaces); err != nil {
				return &bindError{err}
			}
			upnplog.Info(ctx, "upnpctl serve started", "interfaces", interfaceNames(ifaces))
			<-ctx.Done()
			svc.Stop(cmd.Context())
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&ifaceNames, "interface", nil, "interfaces to bind (default: all multicast-capable)")
	return cmd
}

func interfaceNames(ifaces []net.Interface) []string {
	out := make([]string, len(ifaces))
	for i, iface := range ifaces {
		out[i] = iface.Name
	}
	return out
}
