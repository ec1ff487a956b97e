package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Query server status and metrics",
		Example: `  patientctl status
  patientctl status --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.client.Status(a.ctx(cmd))
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), st, func(w io.Writer) {
				fmt.Fprintf(w, "Status: %s\n", st.Status)
				fmt.Fprintf(w, "Version: %s (api %s)\n", st.Version, st.APIVersion)
				fmt.Fprintf(w, "Uptime: %ds\n", st.Uptime)
				if st.LedgerError != "" {
					fmt.Fprintf(w, "Ledger error: %s\n", st.LedgerError)
				}
				fmt.Fprintf(w, "Ledger height: %d\n", st.Metrics.LedgerHeight)
				fmt.Fprintf(w, "Mirror failures: %d\n", st.Metrics.MirrorFailures)
				fmt.Fprintf(w, "CPU Load: %.2f%%\n", st.Metrics.CPULoadPercent)
				fmt.Fprintf(w, "Heap: %.2f MB\n", st.Metrics.HeapMB)
				fmt.Fprintf(w, "Disk Free: %.2f MB\n", st.Metrics.DiskFreeMB)
			})
		},
	}
}

func newLivenessCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "liveness",
		Short: "Check server liveness",
		RunE: func(cmd *cobra.Command, args []string) error {
			alive, err := a.client.Liveness(a.ctx(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Liveness: %v\n", alive)
			return nil
		},
	}
}

func newReadinessCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "readiness",
		Short: "Check server readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			ready, err := a.client.Readiness(a.ctx(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Readiness: %v\n", ready)
			return nil
		},
	}
}
