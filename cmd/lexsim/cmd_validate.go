package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mindburn-Labs/lexsim/pkg/scenario"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <scenario.yaml>",
		Short: "Check a scenario file without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scen, err := scenario.Load(args[0])
			if err != nil {
				return err
			}

			doc := scen.Doc
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(a.stdout).Encode(map[string]any{
					"name":     doc.Name,
					"digest":   scen.Digest(),
					"step":     scen.Step().String(),
					"statutes": len(doc.Statutes),
					"agents":   len(doc.Population.Agents),
					"events":   len(doc.Events),
				})
			}
			_, err = fmt.Fprintf(a.stdout, "ok %s: %d statutes, %d agents, %d events, step %s\n%s\n",
				doc.Name, len(doc.Statutes), len(doc.Population.Agents), len(doc.Events), scen.Step(), scen.Digest())
			return err
		},
	}
}
