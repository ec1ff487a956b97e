package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
)

func newConsentCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consent",
		Short: "Manage consent grants (mutations must be made as the provider)",
	}

	create := &cobra.Command{
		Use:     "create PATIENT_ID PROVIDER_ID true|false",
		Short:   "Record a consent grant",
		Example: "  patientctl --dev-subject Prov1 consent create P1 Prov1 true",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			given, err := strconv.ParseBool(args[2])
			if err != nil {
				return fmt.Errorf("consent value must be true or false: %w", err)
			}
			out, err := a.client.CreateConsent(a.ctx(cmd), args[0], args[1], given)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), out, func(w io.Writer) {
				fmt.Fprintf(w, "Consent: %s\n", out.ConsentID)
				printReceipt(w, out.Receipt)
			})
		},
	}

	get := &cobra.Command{
		Use:   "get PATIENT_ID PROVIDER_ID",
		Short: "Show a consent grant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client.GetConsent(a.ctx(cmd), args[0], args[1])
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), c, func(w io.Writer) {
				fmt.Fprintf(w, "Consent:  %s\n", c.ConsentID)
				fmt.Fprintf(w, "Patient:  %s\n", c.PatientID)
				fmt.Fprintf(w, "Provider: %s\n", c.ProviderID)
				fmt.Fprintf(w, "Given:    %t\n", c.ConsentGiven)
				fmt.Fprintf(w, "Updated:  %s\n", stamp(c.UpdatedAt))
			})
		},
	}

	update := &cobra.Command{
		Use:   "update PATIENT_ID PROVIDER_ID true|false",
		Short: "Change a consent grant",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			given, err := strconv.ParseBool(args[2])
			if err != nil {
				return fmt.Errorf("consent value must be true or false: %w", err)
			}
			r, err := a.client.UpdateConsent(a.ctx(cmd), args[0], args[1], given)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), r, func(w io.Writer) { printReceipt(w, r) })
		},
	}

	del := &cobra.Command{
		Use:   "delete PATIENT_ID PROVIDER_ID",
		Short: "Delete a consent grant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.client.DeleteConsent(a.ctx(cmd), args[0], args[1])
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), r, func(w io.Writer) { printReceipt(w, r) })
		},
	}

	cmd.AddCommand(create, get, update, del)
	return cmd
}
