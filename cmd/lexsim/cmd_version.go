package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(a.stdout).Encode(map[string]string{
					"version": version,
					"commit":  commit,
				})
			}
			_, err := fmt.Fprintf(a.stdout, "lexsim version %s (commit: %s)\n", version, commit)
			return err
		},
	}
}
