package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newRecordsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Manage saved subject records",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open()
			if err != nil {
				return err
			}
			defer a.Close()

			names, err := a.Profiler.ListRecords(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list records: %w", err)
			}
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved records")
				return nil
			}
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nTotal: %d records\n", len(names))
			return nil
		},
	}

	var asJSON bool
	showCmd := &cobra.Command{
		Use:   "show [name]",
		Short: "Print a saved record's profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open()
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.Profiler.LoadRecord(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.Profiler.Board())
			return nil
		},
	}
	showCmd.Flags().BoolVar(&asJSON, "json", false, "Print the stored record document")

	deleteCmd := &cobra.Command{
		Use:   "delete [name]",
		Short: "Delete a saved record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Profiler.DeleteRecord(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(listCmd, showCmd, deleteCmd)
	return cmd
}
