package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cashapp/redwood-sub006/internal/config"
	"github.com/cashapp/redwood-sub006/internal/protocol"
	"github.com/cashapp/redwood-sub006/internal/store"
	"github.com/cashapp/redwood-sub006/internal/widget"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	Mismatch string
}

// BatchResult is the outcome of one applied batch.
type BatchResult struct {
	Index   int    `json:"index"`
	Changes int    `json:"changes"`
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ApplyResult holds the overall apply result.
type ApplyResult struct {
	Batches     []BatchResult `json:"batches"`
	Refused     int           `json:"refused"`
	NodeCount   int           `json:"node_count"`
	Fingerprint string        `json:"fingerprint"`
	Tree        string        `json:"tree"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <schema-dir> <batches-file>",
		Short: "Apply change batches to an in-memory host tree",
		Long: `Apply JSON change batches to a fresh host tree and print the result.

The batches file holds either one change list or a list of change lists.
Each batch is applied in order; a refused batch does not stop the rest.

Exit codes:
  0 - Every batch was applied
  1 - One or more batches were refused
  2 - Command error (missing files, malformed input, etc.)

Examples:
  redwood apply ./schema batches.json
  redwood apply ./schema batches.json --mismatch log --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Mismatch, "mismatch", config.MismatchThrow, "schema mismatch policy (throw|log)")

	return cmd
}

func runApply(opts *ApplyOptions, schemaDir, batchesFile string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := commandLogger(formatter.GetErrWriter(), opts.Verbose)

	mismatch, err := mismatchHandler(opts.Mismatch, logger)
	if err != nil {
		return err
	}
	s, err := loadSchema(schemaDir)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(batchesFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read batches", err)
	}
	payloads, err := splitBatches(data)
	if err != nil {
		_ = formatter.Error(ErrCodeParseFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to parse batches", err)
	}
	formatter.VerboseLog("Applying %d batch(es) with schema %s", len(payloads), s.Name)

	bridge, root := newHostBridge(s, mismatch, logger)
	result := ApplyResult{Batches: make([]BatchResult, 0, len(payloads))}

	var fp uint64
	for i, payload := range payloads {
		out, err := store.Apply(bridge, protocol.EncodingJSON, payload)
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("batch %d", i+1), err)
		}
		fp = out.Fingerprint
		br := BatchResult{
			Index:   i + 1,
			Changes: out.ChangeCount,
			Status:  string(out.Status),
			Code:    string(out.ErrorCode()),
			Error:   out.ErrorMessage(),
		}
		if out.Status != store.StatusApplied {
			result.Refused++
		}
		result.Batches = append(result.Batches, br)
	}

	tree, err := widget.Render(s, root)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to render tree", err)
	}
	result.Tree = tree
	result.NodeCount = bridge.NodeCount()
	result.Fingerprint = fmt.Sprintf("%016x", fp)

	if opts.Format == "json" {
		if result.Refused > 0 {
			return formatter.Failure(ErrCodeRejected, fmt.Sprintf("%d batch(es) refused", result.Refused), result)
		}
		return formatter.Success(result)
	}
	return outputApplyText(formatter, result)
}

// splitBatches accepts a change list or a list of change lists and returns
// one JSON payload per batch.
func splitBatches(data []byte) ([][]byte, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("batches file must hold a JSON array: %w", err)
	}
	if len(items) == 0 || !isArray(items[0]) {
		return [][]byte{bytes.TrimSpace(data)}, nil
	}

	payloads := make([][]byte, len(items))
	for i, item := range items {
		if !isArray(item) {
			return nil, fmt.Errorf("batch %d: expected a change list", i+1)
		}
		payloads[i] = item
	}
	return payloads, nil
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func outputApplyText(formatter *OutputFormatter, result ApplyResult) error {
	w := formatter.Writer
	for _, b := range result.Batches {
		mark := "✓"
		if b.Status != string(store.StatusApplied) {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s batch %d: %s (%d changes)", mark, b.Index, b.Status, b.Changes)
		if b.Code != "" {
			fmt.Fprintf(w, " %s: %s", b.Code, b.Error)
		} else if b.Error != "" {
			fmt.Fprintf(w, " %s", b.Error)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "nodes: %d\n", result.NodeCount)
	fmt.Fprintf(w, "fingerprint: %s\n", result.Fingerprint)
	fmt.Fprint(w, result.Tree)

	if result.Refused > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d batch(es) refused", result.Refused))
	}
	return nil
}
