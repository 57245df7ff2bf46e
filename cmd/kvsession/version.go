package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/kvsession"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of kvsession",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kvsession version %s\n", strings.TrimSpace(kvsession.Version))
		},
	}
}
