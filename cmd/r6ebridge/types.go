package main

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/internal/functionblock"
	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/internal/module"
	"github.com/spf13/cobra"
)

func newTypesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "Print the module, device and function block types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s) %s\n", module.Name, module.ID, module.Version)

			fmt.Fprintln(out, "\nDevice types:")
			deviceTypes := module.DeviceTypes()
			for _, id := range sortedKeys(deviceTypes) {
				fmt.Fprintf(out, "  %s\t%s\n", id, deviceTypes[id].Name)
			}

			fmt.Fprintln(out, "\nFunction block types:")
			blockTypes := functionblock.Types()
			for _, id := range sortedKeys(blockTypes) {
				fmt.Fprintf(out, "  %s\t%s\n", id, blockTypes[id].Name)
			}
			return nil
		},
	}
}

func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
