package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective settings as YAML (secrets omitted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(settings)
			if err != nil {
				return fmt.Errorf("failed to marshal settings: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), styleMuted("# effective kvsession settings"))
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
