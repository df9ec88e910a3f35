package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cashapp/redwood-sub006/internal/store"
)

// TreeSummary describes one journaled tree.
type TreeSummary struct {
	ID           string `json:"id"`
	HostVersion  string `json:"host_version"`
	GuestVersion string `json:"guest_version"`
	Schema       string `json:"schema"`
	Batches      int    `json:"batches"`
	Refused      int    `json:"refused"`
	Events       int    `json:"events"`
	LastSeq      int64  `json:"last_seq"`
}

// NewTreesCommand creates the trees command.
func NewTreesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trees <db>",
		Short: "List journaled trees",
		Long: `List every tree in a journal with its negotiated versions and how
many batches and events were recorded for it.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrees(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runTrees(opts *RootOptions, dbPath string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts, cmd)

	st, err := openJournal(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	trees, err := st.ListTrees(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list trees", err)
	}

	summaries := make([]TreeSummary, 0, len(trees))
	for _, t := range trees {
		s, err := summarizeTree(ctx, st, t)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read tree %s", t.ID), err)
		}
		summaries = append(summaries, s)
	}

	if opts.Format == "json" {
		return formatter.Success(summaries)
	}

	w := formatter.Writer
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No trees found in database.")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\n", s.ID)
		fmt.Fprintf(w, "  schema %s, host %s, guest %s\n", s.Schema, s.HostVersion, s.GuestVersion)
		fmt.Fprintf(w, "  %d batch(es), %d refused, %d event(s), last seq %d\n", s.Batches, s.Refused, s.Events, s.LastSeq)
	}
	return nil
}

func summarizeTree(ctx context.Context, st *store.Store, t store.Tree) (TreeSummary, error) {
	batches, err := st.ReadBatches(ctx, t.ID)
	if err != nil {
		return TreeSummary{}, err
	}
	events, err := st.ReadEvents(ctx, t.ID)
	if err != nil {
		return TreeSummary{}, err
	}
	last, err := st.LastSeq(ctx, t.ID)
	if err != nil {
		return TreeSummary{}, err
	}

	s := TreeSummary{
		ID:           t.ID,
		HostVersion:  t.HostVersion.String(),
		GuestVersion: t.GuestVersion.String(),
		Schema:       t.SchemaName,
		Batches:      len(batches),
		Events:       len(events),
		LastSeq:      last,
	}
	for _, b := range batches {
		if b.Status != store.StatusApplied {
			s.Refused++
		}
	}
	return s, nil
}
