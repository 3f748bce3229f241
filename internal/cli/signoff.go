package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"gatewarden/internal/signoff"
)

func newSignoffCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signoff",
		Short: "Manage human sign-offs for gate passage",
	}

	cmd.AddCommand(newSignoffRequestCommand(app))
	cmd.AddCommand(newSignoffVerifyCommand(app))
	cmd.AddCommand(newSignoffStatusCommand(app))

	return cmd
}

func newSignoffRequestCommand(app *App) *cobra.Command {
	var (
		stage    int
		phase    int
		gateType string
	)

	cmd := &cobra.Command{
		Use:   "request",
		Short: "Request a sign-off token for a gate",
		Long: `Create a pending sign-off for a gate and print the token the human
reviewer must present to verify it.

Example:
  gatewarden signoff request --stage 1 --phase 3 --type output`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if gateType != "input" && gateType != "output" {
				return fmt.Errorf("invalid gate type %q: must be input or output", gateType)
			}
			if !signoff.Required(phase, gateType) {
				fmt.Fprintln(cmd.OutOrStdout(), "Sign-off not required for this gate")
				return nil
			}

			rec, err := app.Signoffs.Request(stage, phase, gateType)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sign-off requested for stage %d phase %d (%s)\n",
				rec.Stage, rec.Phase, rec.GateType)
			fmt.Fprintf(cmd.OutOrStdout(), "Token:   %s\n", rec.Token)
			fmt.Fprintf(cmd.OutOrStdout(), "Expires: %s\n", rec.ExpiresAt)
			return nil
		},
	}

	cmd.Flags().IntVar(&stage, "stage", 1, "stage number")
	cmd.Flags().IntVar(&phase, "phase", 0, "phase number (required)")
	cmd.Flags().StringVar(&gateType, "type", "output", "gate type: input or output")
	cmd.MarkFlagRequired("phase")

	return cmd
}

func newSignoffVerifyCommand(app *App) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a sign-off token",
		Long: `Confirm a pending sign-off by presenting its token.

Exits 1 when the token is unknown or expired.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := app.Signoffs.Verify(token)
			switch {
			case errors.Is(err, signoff.ErrTokenNotFound):
				fmt.Fprintln(cmd.OutOrStdout(), "Token not found or already used")
				return NewExitError(1)
			case errors.Is(err, signoff.ErrTokenExpired):
				fmt.Fprintln(cmd.OutOrStdout(), "Token expired; request a new sign-off")
				return NewExitError(1)
			case err != nil:
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Sign-off verified for stage %d phase %d (%s) at %s\n",
				rec.Stage, rec.Phase, rec.GateType, rec.VerifiedAt)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "sign-off token (required)")
	cmd.MarkFlagRequired("token")

	return cmd
}

func newSignoffStatusCommand(app *App) *cobra.Command {
	var (
		stage    int
		phase    int
		gateType string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the sign-off status for a gate",
		RunE: func(cmd *cobra.Command, args []string) error {
			if gateType != "input" && gateType != "output" {
				return fmt.Errorf("invalid gate type %q: must be input or output", gateType)
			}

			status := app.Signoffs.Check(stage, phase, gateType)
			fmt.Fprintln(cmd.OutOrStdout(), status.Message)
			if status.Required && !status.Verified && status.ExpiresAt != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Token expires: %s\n", status.ExpiresAt)
			}

			if status.Required && !status.Verified {
				return NewExitError(2)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&stage, "stage", 1, "stage number")
	cmd.Flags().IntVar(&phase, "phase", 0, "phase number (required)")
	cmd.Flags().StringVar(&gateType, "type", "output", "gate type: input or output")
	cmd.MarkFlagRequired("phase")

	return cmd
}
