// Package cmd holds the patientctl command tree.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"patientledger/cli/api"
	"patientledger/core/auth"
)

type app struct {
	server     string
	token      string
	devSubject string
	devSecret  string
	issuer     string
	output     string
	timeout    time.Duration

	client *api.Client
}

// NewRootCmd builds a fresh command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "patientctl",
		Short:         "patientledger command-line client",
		Long:          "A command-line tool for managing patient and consent records on a patientledger server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	f := root.PersistentFlags()
	f.StringVar(&a.server, "server", envOr("PL_SERVER", "http://localhost:8080"), "server base URL")
	f.StringVar(&a.token, "token", os.Getenv("PL_TOKEN"), "bearer token")
	f.StringVar(&a.devSubject, "dev-subject", "", "mint a short-lived token for this subject (needs --dev-secret)")
	f.StringVar(&a.devSecret, "dev-secret", os.Getenv("PL_JWT_SECRET"), "HS256 secret used with --dev-subject")
	f.StringVar(&a.issuer, "issuer", envOr("PL_JWT_ISSUER", "patientledger"), "token issuer used with --dev-subject")
	f.StringVarP(&a.output, "output", "o", "plain", "output format: plain|json")
	f.DurationVar(&a.timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(
		newPatientCmd(a),
		newConsentCmd(a),
		newHistoryCmd(a),
		newStatusCmd(a),
		newLivenessCmd(a),
		newReadinessCmd(a),
	)
	return root
}

func (a *app) init() error {
	switch a.output {
	case "plain", "json":
	default:
		return fmt.Errorf("unknown output format %q", a.output)
	}
	token := a.token
	if a.devSubject != "" {
		if a.devSecret == "" {
			return errors.New("--dev-subject needs --dev-secret or PL_JWT_SECRET")
		}
		t, err := auth.IssueToken([]byte(a.devSecret), a.issuer, a.devSubject, 15*time.Minute)
		if err != nil {
			return err
		}
		token = t
	}
	a.client = api.NewClient(a.server, token)
	a.client.HTTP.Timeout = a.timeout
	return nil
}

func (a *app) ctx(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Execute runs patientctl and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
