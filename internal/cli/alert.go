package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gatewarden/internal/alerts"
)

func newAlertCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alert",
		Short: "Manage user alerts on the coordination bus",
	}

	cmd.AddCommand(newAlertCreateCommand(app))
	cmd.AddCommand(newAlertListCommand(app))
	cmd.AddCommand(newAlertResolveCommand(app))
	cmd.AddCommand(newAlertCheckCommand(app))

	return cmd
}

func newAlertCreateCommand(app *App) *cobra.Command {
	var (
		severity string
		kind     string
		agent    string
		actions  []string
	)

	cmd := &cobra.Command{
		Use:   "create <message>",
		Short: "Create a new alert",
		Long: `Create a new active alert on the coordination bus.

Example:
  gatewarden alert create "Migration pending" --severity high --agent Backend-Agent`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !containsValue(alerts.SeverityLevels, severity) {
				return fmt.Errorf("invalid severity %q: must be one of %s",
					severity, strings.Join(alerts.SeverityLevels, ", "))
			}
			if kind != "" && !containsValue(alerts.NotificationTypes, kind) {
				return fmt.Errorf("invalid notification type %q: must be one of %s",
					kind, strings.Join(alerts.NotificationTypes, ", "))
			}

			alert, err := app.Alerts.Create(severity, args[0], kind, agent, actions)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created alert %s (%s)\n", alert.ID, alert.Severity)
			return nil
		},
	}

	cmd.Flags().StringVar(&severity, "severity", "medium", "severity: critical, high, medium, or low")
	cmd.Flags().StringVar(&kind, "type", "", "notification type (default: blocker_alert)")
	cmd.Flags().StringVar(&agent, "agent", "", "agent raising the alert")
	cmd.Flags().StringSliceVar(&actions, "action", nil, "suggested action (repeatable)")

	return cmd
}

func newAlertListCommand(app *App) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				list []alerts.Alert
				err  error
			)
			if all {
				list, err = app.Alerts.Load()
			} else {
				list, err = app.Alerts.Active()
			}
			if err != nil {
				return err
			}

			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No alerts")
				return nil
			}
			for _, a := range list {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-8s %-10s %s\n",
					a.ID, a.Severity, a.Status, a.Message)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include resolved alerts")
	return cmd
}

func newAlertResolveCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <alert-id>",
		Short: "Mark an alert as resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := app.Alerts.Resolve(args[0])
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintf(cmd.OutOrStdout(), "Alert %s not found\n", args[0])
				return NewExitError(1)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Resolved alert %s\n", args[0])
			return nil
		},
	}
}

func newAlertCheckCommand(app *App) *cobra.Command {
	var (
		toPhase int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether alerts permit a phase transition",
		Long: `Evaluate active alerts against a move to the given phase.

Exits 0 when clear, 3 when critical alerts block the transition.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			check, err := app.Alerts.CheckTransition(toPhase)
			if err != nil {
				return err
			}

			if jsonOut {
				if err := printJSON(cmd, check); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", check.Status, check.Message)
				if check.Reason != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", check.Reason)
				}
				for _, a := range check.Alerts {
					fmt.Fprintf(cmd.OutOrStdout(), "  %-12s %-8s %s\n", a.ID, a.Severity, a.Message)
				}
			}

			if !check.CanProceed {
				return NewExitError(3)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&toPhase, "to-phase", 0, "target phase (required)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the check result as JSON")
	cmd.MarkFlagRequired("to-phase")

	return cmd
}

func containsValue(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
