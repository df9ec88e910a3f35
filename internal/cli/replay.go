package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cashapp/redwood-sub006/internal/config"
	"github.com/cashapp/redwood-sub006/internal/host"
	"github.com/cashapp/redwood-sub006/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Schema   string
	Mismatch string
	Parallel int
}

// ReplayTreeResult holds the replay result for a single tree.
type ReplayTreeResult struct {
	TreeID        string   `json:"tree_id"`
	Batches       int      `json:"batches"`
	Fingerprint   string   `json:"fingerprint"`
	Deterministic bool     `json:"deterministic"`
	Divergences   []string `json:"divergences,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Trees      []ReplayTreeResult `json:"trees"`
	TotalTrees int                `json:"total_trees"`
	AllMatch   bool               `json:"all_match"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <db> [tree-id]",
		Short: "Replay the journal and verify outcomes",
		Long: `Re-apply every journaled batch to a fresh host tree and compare each
outcome (status, error code, fingerprint) with the recorded one.

Each tree is replayed twice to verify determinism. Trees replay in
parallel, at most --parallel at a time.

Exit codes:
  0 - Every tree replays as journaled
  1 - A divergence or non-deterministic replay was found
  2 - Command error (database not found, bad schema, etc.)

Examples:
  redwood replay ./redwood.db --schema ./schema
  redwood replay ./redwood.db 01HZX3... --schema ./schema --format json`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			treeID := ""
			if len(args) == 2 {
				treeID = args[1]
			}
			return runReplay(opts, args[0], treeID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Schema, "schema", "", "schema directory the trees were built with (required)")
	_ = cmd.MarkFlagRequired("schema")
	cmd.Flags().StringVar(&opts.Mismatch, "mismatch", config.MismatchThrow, "schema mismatch policy used by the host (throw|log)")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 4, "trees replayed at once (0 for no limit)")

	return cmd
}

// openJournal opens an existing journal. store.Open would create a missing
// file, so its absence is checked first.
func openJournal(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func runReplay(opts *ReplayOptions, dbPath, treeID string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := commandLogger(formatter.GetErrWriter(), opts.Verbose)

	if _, err := mismatchHandler(opts.Mismatch, logger); err != nil {
		return err
	}
	s, err := loadSchema(opts.Schema)
	if err != nil {
		return err
	}

	st, err := openJournal(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	newBridge := func(store.Tree) (*host.Bridge, error) {
		mismatch, err := mismatchHandler(opts.Mismatch, logger)
		if err != nil {
			return nil, err
		}
		b, _ := newHostBridge(s, mismatch, logger)
		return b, nil
	}

	var replays []*store.ReplayResult
	if treeID != "" {
		r, err := st.ReplayTree(ctx, treeID, newBridge)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay tree %s", treeID), err)
		}
		replays = []*store.ReplayResult{r}
	} else {
		replays, err = st.ReplayTrees(ctx, newBridge, opts.Parallel)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to replay trees", err)
		}
	}

	result := ReplayResult{
		Trees:      make([]ReplayTreeResult, 0, len(replays)),
		TotalTrees: len(replays),
		AllMatch:   true,
	}
	for _, r := range replays {
		formatter.VerboseLog("Replayed tree %s: %d batch(es)", r.TreeID, r.Batches)
		tr := ReplayTreeResult{
			TreeID:        r.TreeID,
			Batches:       r.Batches,
			Fingerprint:   fmt.Sprintf("%016x", r.Fingerprint),
			Deterministic: r.Deterministic,
		}
		for _, d := range r.Divergences {
			tr.Divergences = append(tr.Divergences, d.String())
		}
		if !r.OK() {
			result.AllMatch = false
		}
		result.Trees = append(result.Trees, tr)
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}
	if !result.AllMatch {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeDiverged,
			Message: "replay verification failed",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.AllMatch {
		return NewExitError(ExitFailure, "replay verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult) error {
	w := cmd.OutOrStdout()

	if result.TotalTrees == 0 {
		fmt.Fprintln(w, "No trees found in database.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d tree(s)\n", result.TotalTrees)
	fmt.Fprintln(w)

	for _, tree := range result.Trees {
		status := "✓"
		if len(tree.Divergences) > 0 || !tree.Deterministic {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Tree: %s\n", status, tree.TreeID)
		fmt.Fprintf(w, "  Batches: %d, fingerprint %s\n", tree.Batches, tree.Fingerprint)
		for _, d := range tree.Divergences {
			fmt.Fprintf(w, "  Divergence: %s\n", d)
		}
		if !tree.Deterministic {
			fmt.Fprintln(w, "  Warning: Non-deterministic replay detected!")
		}
		fmt.Fprintln(w)
	}

	if result.AllMatch {
		fmt.Fprintln(w, "✓ All trees replay as journaled")
		return nil
	}

	fmt.Fprintln(w, "✗ Replay verification failed")
	return NewExitError(ExitFailure, "replay verification failed")
}
