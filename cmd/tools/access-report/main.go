// cmd/tools/access-report/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"premium-push-workers/internal/access"
	"premium-push-workers/internal/app"
	"premium-push-workers/internal/common/config"
	apperrors "premium-push-workers/internal/common/errors"
	"premium-push-workers/internal/common/logger"
	"premium-push-workers/internal/push"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "access-report",
		Short:         "Check premium access and push delivery for a user",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (defaults to configs/config.yaml lookup)")
	root.AddCommand(newCheckCommand())
	return root
}

type checkOptions struct {
	email  string
	at     string
	send   bool
	title  string
	body   string
	asJSON bool
}

func newCheckCommand() *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate access for --email and optionally send a push to linked devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			now, err := parseAt(opts.at, time.Now())
			if err != nil {
				return err
			}
			if opts.send && (opts.title == "" || opts.body == "") {
				return fmt.Errorf("--send requires --title and --body")
			}

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to read config: %w", err)
			}
			log := logger.NewStructured("warn", "console", "stderr")

			ctx := cmd.Context()
			application, err := app.Build(ctx, cfg, log, app.Options{ConnectAttempts: 3, ConnectDelay: time.Second})
			if err != nil {
				return err
			}
			defer application.Close()

			var report *access.Report
			if opts.send {
				report, err = application.Orchestrator.Run(ctx, opts.email, now, push.Payload{Title: opts.title, Body: opts.body})
			} else {
				report, err = application.Orchestrator.Preview(ctx, opts.email, now)
			}
			if err != nil {
				return describeLookupError(opts.email, err)
			}

			if opts.asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.email, "email", "", "user email")
	cmd.Flags().StringVar(&opts.at, "at", "", "evaluation time, RFC3339 or YYYY-MM-DD (defaults to now)")
	cmd.Flags().BoolVar(&opts.send, "send", false, "deliver a push to linked devices")
	cmd.Flags().StringVar(&opts.title, "title", "", "push title")
	cmd.Flags().StringVar(&opts.body, "body", "", "push body")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the full report as JSON")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFromFile(cfgFile)
	}
	return config.Load()
}

func describeLookupError(email string, err error) error {
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return fmt.Errorf("no active user with email %q", email)
	case errors.Is(err, apperrors.ErrAmbiguousUser):
		return fmt.Errorf("more than one active user matches %q; fix the data before retrying", email)
	case errors.Is(err, apperrors.ErrUserLookupFailed), errors.Is(err, apperrors.ErrDeviceQueryFailed):
		return fmt.Errorf("database unavailable: %w", err)
	}
	return err
}

func parseAt(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid --at %q: use RFC3339 or YYYY-MM-DD", s)
}

func printReport(w io.Writer, r *access.Report) {
	summary := tablewriter.NewWriter(w)
	summary.SetHeader([]string{"Field", "Value"})
	summary.SetAutoWrapText(false)
	summary.AppendBulk([][]string{
		{"Report", r.ReportID},
		{"User", r.UserID + " <" + r.Email + ">"},
		{"Plan", string(r.Plan)},
		{"Evaluated at", r.EvaluatedAt.Format(time.RFC3339)},
		{"Premium", yesNo(r.Entitlement.IsPremium)},
		{"Trial", trialCell(r)},
		{"Access", yesNo(r.Entitlement.HasAccess)},
		{"Status", string(r.Status)},
		{"Reason", r.Reason},
		{"Linked / inactive / unlinked", fmt.Sprintf("%d / %d / %d", r.Linkage.Linked, r.Linkage.LinkedInactive, r.Linkage.Unlinked)},
		{"Orphaned", strconv.Itoa(r.Linkage.Orphaned)},
	})
	summary.Render()

	if len(r.LinkedDevices) > 0 {
		fmt.Fprintln(w, "\nLinked devices")
		devices := tablewriter.NewWriter(w)
		devices.SetHeader([]string{"Device", "Platform", "Token", "Updated"})
		for _, d := range r.LinkedDevices {
			devices.Append([]string{d.DeviceID, string(d.Platform), d.TokenPreview, d.UpdatedAt.Format(time.RFC3339)})
		}
		devices.Render()
	}

	if len(r.RecentOrphans) > 0 {
		fmt.Fprintln(w, "\nRecently active orphaned devices")
		orphans := tablewriter.NewWriter(w)
		orphans.SetHeader([]string{"Device", "Platform", "Token", "Updated"})
		for _, d := range r.RecentOrphans {
			orphans.Append([]string{d.DeviceID, string(d.Platform), d.TokenPreview, d.UpdatedAt.Format(time.RFC3339)})
		}
		orphans.Render()
	}

	if b := r.Dispatch; b != nil {
		fmt.Fprintf(w, "\nDispatch %s: %d total, %d delivered, %d failed, %d skipped\n",
			b.BatchID, b.Total, b.Delivered, b.Failed, b.Skipped)
		outcomes := tablewriter.NewWriter(w)
		outcomes.SetHeader([]string{"Device", "Provider", "Status", "Kind", "Retryable", "Error"})
		for _, o := range b.Outcomes {
			outcomes.Append([]string{o.DeviceID, o.Provider, string(o.Status), string(o.ErrorKind), yesNo(o.Retryable), o.Error})
		}
		outcomes.Render()
	}

	for _, warning := range r.Warnings {
		fmt.Fprintln(w, "WARNING:", warning)
	}
}

func trialCell(r *access.Report) string {
	if r.Entitlement.TrialEndsAt == nil {
		return yesNo(r.Entitlement.IsTrial)
	}
	return fmt.Sprintf("%s (ends %s)", yesNo(r.Entitlement.IsTrial), r.Entitlement.TrialEndsAt.Format(time.RFC3339))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
