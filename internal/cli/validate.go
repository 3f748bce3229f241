package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"gatewarden/internal/gate"
)

func newValidateCommand(app *App) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "validate <gate-record>",
		Short: "Validate a gate record document",
		Long: `Validate a gate record document against the required structure
and the anti-fabrication checks.

Exits 0 when the record is valid, 1 when it has errors, and 2 when it is
valid but carries warnings worth reviewing.

Example:
  gatewarden validate .gatewarden/gates/stage1/phase2-output-gate.md`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			result := app.Validator.ValidateFile(path)

			if jsonOut {
				if err := printJSON(cmd, validationPayload(path, result)); err != nil {
					return err
				}
			} else {
				app.Printer.ValidationReport(path, result)
			}

			switch {
			case !result.Valid():
				return NewExitError(1)
			case len(result.Warnings) > 0:
				return NewExitError(2)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the validation result as JSON")
	return cmd
}

func validationPayload(path string, res *gate.Result) map[string]any {
	return map[string]any{
		"file":     path,
		"valid":    res.Valid(),
		"errors":   res.Errors,
		"warnings": res.Warnings,
		"info":     res.Info,
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
