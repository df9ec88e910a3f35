package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cashapp/redwood-sub006/internal/schema"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                     `json:"valid"`
	Schema    string                   `json:"schema,omitempty"`
	Widgets   int                      `json:"widgets"`
	Modifiers int                      `json:"modifiers"`
	Errors    []schema.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <schema-dir>",
		Short: "Validate a widget schema",
		Long: `Load the CUE widget schema in a directory and check it.

Reports tag range and uniqueness problems for widgets, modifiers,
properties, events and children slots.

Exit codes:
  0 - Schema is valid
  1 - Schema is invalid
  2 - Command error (directory not found, no CUE files, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return outputValidateError(formatter, ErrCodeNotFound, fmt.Sprintf("schema directory not found: %s", dir))
	}
	files, err := schema.FindCUEFiles(dir)
	if err != nil {
		return outputValidateError(formatter, ErrCodeGeneric, err.Error())
	}
	if len(files) == 0 {
		return outputValidateError(formatter, ErrCodeNoFiles, fmt.Sprintf("no CUE files found in %s", dir))
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", len(files), dir)

	s, err := schema.LoadDir(dir)
	if err != nil {
		var verrs *schema.ValidationErrors
		if errors.As(err, &verrs) {
			return outputValidationErrors(formatter, verrs.Errors)
		}
		var cerr *schema.CompileError
		if errors.As(err, &cerr) {
			return outputValidationErrors(formatter, []schema.ValidationError{{
				Field:   cerr.Field,
				Message: cerr.Error(),
				Code:    ErrCodeLoadFailed,
			}})
		}
		return outputValidateError(formatter, ErrCodeLoadFailed, err.Error())
	}

	for _, w := range s.Widgets {
		formatter.VerboseLog("Widget %s (tag %d)", w.Name, w.Tag)
	}
	return outputValidateSuccess(formatter, s)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, s *schema.Schema) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{
			Valid:     true,
			Schema:    s.Name,
			Widgets:   len(s.Widgets),
			Modifiers: len(s.Modifiers),
		})
	}

	fmt.Fprintf(formatter.Writer, "✓ Schema %s valid (%d widgets, %d modifiers)\n",
		s.Name, len(s.Widgets), len(s.Modifiers))
	return nil
}

// outputValidateError outputs a single command-level error.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs every schema problem.
func outputValidationErrors(formatter *OutputFormatter, errs []schema.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "%s\n", err.Field)
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
