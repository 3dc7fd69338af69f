package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/navidrome/goupnp-core/control"
	"github.com/navidrome/goupnp-core/soap"
	"github.com/navidrome/goupnp-core/transport"
)

func newInvokeCommand(configPath *string) *cobra.Command {
	var controlURL, serviceType, actionName string
	var rawArgs []string

	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Invoke a single action on a remote service's control URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			if controlURL == "" || serviceType == "" || actionName == "" {
				return &configError{fmt.Errorf("invoke requires --control-url, --service-type, and --action")}
			}
			var soapArgs []soap.Argument
			for _, kv := range rawArgs {
				name, value, ok := strings.Cut(kv, "=")
				if !ok {
					return &configError{fmt.Errorf("invalid --arg %q, expected Name=Value", kv)}
				}
				soapArgs = append(soapArgs, soap.Argument{Name: name, Value: value})
			}

			client := control.NewClient(transport.DefaultTimeouts)
			outputs, err := client.Invoke(cmd.Context(), controlURL, serviceType, actionName, soapArgs)
			if err != nil {
				if fault, ok := err.(*soap.Fault); ok {
					fmt.Fprintf(cmd.ErrOrStderr(), "UPnPError %d: %s\n", fault.Code, fault.Description)
					return &bindError{fault}
				}
				return &bindError{err}
			}
			for _, out := range outputs {
				fmt.Printf("%s = %s\n", out.Name, out.Value)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&controlURL, "control-url", "", "the service's control URL")
	cmd.Flags().StringVar(&serviceType, "service-type", "", "the service type URN")
	cmd.Flags().StringVar(&actionName, "action", "", "the action name")
	cmd.Flags().StringArrayVar(&rawArgs, "arg", nil, "input argument as Name=Value, repeatable")
	return cmd
}
