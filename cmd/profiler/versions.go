package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func (a *app) versionsCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "versions NAME",
		Short: "List the stored snapshot versions of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			repo, err := a.repository(cmd.Context())
			if err != nil {
				return err
			}
			vs, err := repo.Versions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output == "json" {
				return writeJSON(a.stdout, vs)
			}

			table := tablewriter.NewWriter(a.stdout)
			table.Header("Version", "Hash", "Records", "Fields", "Created")
			for _, v := range vs {
				row := []string{
					strconv.Itoa(v.Version),
					v.Hash,
					strconv.Itoa(v.Records),
					strconv.Itoa(v.Fields),
					v.CreatedAt.UTC().Format(time.RFC3339),
				}
				if err := table.Append(row); err != nil {
					return fmt.Errorf("versions: table row: %w", err)
				}
			}
			return table.Render()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output: table or json")
	return cmd
}
