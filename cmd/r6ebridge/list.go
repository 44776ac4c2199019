package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List capture devices and their connection strings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openModule()
			if err != nil {
				return err
			}
			defer m.Close()

			devices, err := m.AvailableDevices()
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No capture devices found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DEFAULT\tNAME\tCONNECTION STRING")
			for _, d := range devices {
				isDefault := ""
				if d.IsDefault {
					isDefault = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", isDefault, d.Name, d.ConnectionString)
			}
			return w.Flush()
		},
	}
}
