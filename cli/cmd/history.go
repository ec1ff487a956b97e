package cmd

import (
	"io"

	"github.com/spf13/cobra"
)

// newHistoryCmd replaces the old view-revisions command: it lists the ledger
// journal for one record.
func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the ledger journal for a record",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "patient PATIENT_ID",
		Short: "Journal entries for a patient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := a.client.PatientHistory(a.ctx(cmd), args[0])
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), entries, func(w io.Writer) { printEntries(w, entries) })
		},
	}, &cobra.Command{
		Use:   "consent PATIENT_ID PROVIDER_ID",
		Short: "Journal entries for a consent grant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := a.client.ConsentHistory(a.ctx(cmd), args[0], args[1])
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), entries, func(w io.Writer) { printEntries(w, entries) })
		},
	})
	return cmd
}
