package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"patientledger/cli/api"
)

func newPatientCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patient",
		Short: "Manage patient records",
	}

	var id string
	var f api.PatientFields
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a patient record",
		Example: `  patientctl patient create --name Alice --dob 1990-01-01 --contact a@x.com
  patientctl patient create --id P1 --name Alice --dob 1990-01-01 --contact a@x.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := a.client.CreatePatient(a.ctx(cmd), id, f)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), out, func(w io.Writer) {
				fmt.Fprintf(w, "Patient: %s\n", out.PatientID)
				printReceipt(w, out.Receipt)
			})
		},
	}
	create.Flags().StringVar(&id, "id", "", "patient ID (generated when empty)")
	fieldFlags(create, &f)

	get := &cobra.Command{
		Use:   "get PATIENT_ID",
		Short: "Show a decrypted patient record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.client.GetPatient(a.ctx(cmd), args[0])
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), p, func(w io.Writer) {
				fmt.Fprintf(w, "Patient:       %s\n", p.PatientID)
				fmt.Fprintf(w, "Name:          %s\n", p.Name)
				fmt.Fprintf(w, "Date of birth: %s\n", p.DateOfBirth)
				fmt.Fprintf(w, "Contact:       %s\n", p.ContactInfo)
				fmt.Fprintf(w, "Created:       %s\n", stamp(p.CreatedAt))
				fmt.Fprintf(w, "Updated:       %s\n", stamp(p.UpdatedAt))
			})
		},
	}

	var uf api.PatientFields
	update := &cobra.Command{
		Use:   "update PATIENT_ID",
		Short: "Replace a patient's demographic fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.client.UpdatePatient(a.ctx(cmd), args[0], uf)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), r, func(w io.Writer) { printReceipt(w, r) })
		},
	}
	fieldFlags(update, &uf)

	del := &cobra.Command{
		Use:   "delete PATIENT_ID",
		Short: "Delete a patient record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.client.DeletePatient(a.ctx(cmd), args[0])
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), r, func(w io.Writer) { printReceipt(w, r) })
		},
	}

	cmd.AddCommand(create, get, update, del)
	return cmd
}

func fieldFlags(cmd *cobra.Command, f *api.PatientFields) {
	cmd.Flags().StringVar(&f.Name, "name", "", "full name")
	cmd.Flags().StringVar(&f.DateOfBirth, "dob", "", "date of birth (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.ContactInfo, "contact", "", "contact information")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("dob")
	_ = cmd.MarkFlagRequired("contact")
}
