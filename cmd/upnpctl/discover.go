package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/navidrome/goupnp-core/registry"
	"github.com/navidrome/goupnp-core/transport"
)

func newDiscoverCommand(configPath *string) *cobra.Command {
	var searchTarget string
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Search for remote UPnP devices and print what answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			svc, err := InitializeService(cfg)
			if err != nil {
				return &bindError{fmt.Errorf("build service: %w", err)}
			}

			ifaces, err := transport.Interfaces(nil, cfg.ExcludeInterfaces)
			if err != nil || len(ifaces) == 0 {
				return &bindError{fmt.Errorf("no multicast-capable interfaces available")}
			}

			ctx, cancel := withCancelOnSignal(cmd.Context())
			defer cancel()

			svc.Registry.AddListener(func(ev registry.Event) {
				switch ev.Kind {
				case registry.EventRemoteAdded:
					fmt.Printf("+ %s  %s  %s\n", ev.UDN, ev.Device.DeviceType, ev.Device.FriendlyName)
				case registry.EventRemoteRemoved:
					fmt.Printf("- %s  (%s)\n", ev.UDN, ev.Reason.String())
				}
			})

			if err := svc.Start(ctx, ifaces); err != nil {
				return &bindError{err}
			}
			svc.Discover(ctx, searchTarget)

			select {
			case <-time.After(wait):
			case <-ctx.Done():
			}
			svc.Stop(cmd.Context())
			return nil
		},
	}
	cmd.Flags().StringVar(&searchTarget, "st", "ssdp:all", "search target")
	cmd.Flags().DurationVar(&wait, "wait", 5*time.Second, "how long to collect responses")
	return cmd
}
