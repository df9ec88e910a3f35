package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cashapp/redwood-sub006/internal/protocol"
	"github.com/cashapp/redwood-sub006/internal/widget"
)

// SnapshotOptions holds flags for the snapshot check command.
type SnapshotOptions struct {
	*RootOptions
	Schema string
}

// SnapshotResult holds the snapshot check result.
type SnapshotResult struct {
	Valid   bool   `json:"valid"`
	Changes int    `json:"changes"`
	Tree    string `json:"tree,omitempty"`
}

// NewSnapshotCommand creates the snapshot command.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Work with snapshot change lists",
	}

	check := &cobra.Command{
		Use:   "check <file>",
		Short: "Check that a change list only builds a tree",
		Long: `Check that a JSON change list is a valid snapshot: it may create,
set and add, but never move or remove.

With --schema the snapshot is applied to a fresh host tree and rendered.

Exit codes:
  0 - Valid snapshot
  1 - The list contains mutations or does not apply
  2 - Command error (file not found, malformed JSON, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotCheck(opts, args[0], cmd)
		},
	}
	check.Flags().StringVar(&opts.Schema, "schema", "", "schema directory used to render the snapshot")
	cmd.AddCommand(check)

	return cmd
}

func runSnapshotCheck(opts *SnapshotOptions, file string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	data, err := os.ReadFile(file)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read snapshot", err)
	}

	var snap protocol.SnapshotChangeList
	if err := json.Unmarshal(data, &snap); err != nil {
		code := protocol.CodeOf(err)
		if code != protocol.ErrCodeSnapshotMutation {
			_ = formatter.Error(ErrCodeParseFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to parse snapshot", err)
		}
		if opts.Format == "json" {
			return formatter.Failure(string(code), err.Error(), SnapshotResult{Valid: false})
		}
		fmt.Fprintln(formatter.Writer, "✗ Invalid snapshot")
		fmt.Fprintln(formatter.Writer, err.Error())
		return NewExitError(ExitFailure, "snapshot contains mutations")
	}

	result := SnapshotResult{Valid: true, Changes: snap.Len()}
	if opts.Schema != "" {
		tree, err := renderSnapshot(opts, formatter, snap)
		if err != nil {
			return err
		}
		result.Tree = tree
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Valid snapshot (%d changes)\n", result.Changes)
	fmt.Fprint(formatter.Writer, result.Tree)
	return nil
}

func renderSnapshot(opts *SnapshotOptions, formatter *OutputFormatter, snap protocol.SnapshotChangeList) (string, error) {
	s, err := loadSchema(opts.Schema)
	if err != nil {
		return "", err
	}
	logger := commandLogger(formatter.GetErrWriter(), opts.Verbose)
	mismatch, err := mismatchHandler("throw", logger)
	if err != nil {
		return "", err
	}

	bridge, root := newHostBridge(s, mismatch, logger)
	if err := bridge.SendChanges(snap.Changes()); err != nil {
		_ = formatter.Error(string(protocol.CodeOf(err)), err.Error(), nil)
		return "", WrapExitError(ExitFailure, "snapshot does not apply", err)
	}
	tree, err := widget.Render(s, root)
	if err != nil {
		return "", WrapExitError(ExitFailure, "failed to render snapshot", err)
	}
	return tree, nil
}
