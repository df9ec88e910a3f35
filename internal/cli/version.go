package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cashapp/redwood-sub006/internal/config"
	"github.com/cashapp/redwood-sub006/internal/guest"
	"github.com/cashapp/redwood-sub006/internal/protocol"
)

// VersionInfo describes one protocol version.
type VersionInfo struct {
	Version string `json:"version"`
	Label   string `json:"label,omitempty"`

	// ItemizedRemoval is true when guests talking to a host of this
	// version must list every removed descendant.
	ItemizedRemoval bool `json:"itemized_removal"`
}

// VersionComparison is the result of comparing two versions.
type VersionComparison struct {
	A      string `json:"a"`
	B      string `json:"b"`
	Result int    `json:"result"`
}

// NewVersionCommand creates the version command and its subcommands.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version [host-version]",
		Short: "Describe a protocol version",
		Long: `Describe a Redwood protocol version, by default the one this host
announces.

Examples:
  redwood version
  redwood version 0.9.0
  redwood version compare 0.10.0-SNAPSHOT 0.10.0`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := config.DefaultHostVersion
			if len(args) == 1 {
				v = args[0]
			}
			return runVersionInfo(rootOpts, v, cmd)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "compare <a> <b>",
		Short:         "Compare two protocol versions",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersionCompare(rootOpts, args[0], args[1], cmd)
		},
	})

	return cmd
}

func parseVersionArg(formatter *OutputFormatter, s string) (protocol.RedwoodVersion, error) {
	v, err := protocol.ParseVersion(s)
	if err != nil {
		_ = formatter.Error(string(protocol.CodeOf(err)), err.Error(), nil)
		return protocol.RedwoodVersion{}, WrapExitError(ExitCommandError, "invalid version", err)
	}
	return v, nil
}

func runVersionInfo(opts *RootOptions, s string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	v, err := parseVersionArg(formatter, s)
	if err != nil {
		return err
	}

	info := VersionInfo{
		Version:         v.String(),
		Label:           v.Label(),
		ItemizedRemoval: guest.NewProtocolState(v).SynthesizeSubtreeRemoval(),
	}
	if opts.Format == "json" {
		return formatter.Success(info)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "version: %s\n", info.Version)
	if info.Label != "" {
		fmt.Fprintf(w, "label: %s\n", info.Label)
	}
	if info.ItemizedRemoval {
		fmt.Fprintln(w, "removals: guests list every removed descendant")
	} else {
		fmt.Fprintln(w, "removals: host cascades to descendants")
	}
	return nil
}

func runVersionCompare(opts *RootOptions, a, b string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	va, err := parseVersionArg(formatter, a)
	if err != nil {
		return err
	}
	vb, err := parseVersionArg(formatter, b)
	if err != nil {
		return err
	}

	c := VersionComparison{A: va.String(), B: vb.String(), Result: va.Compare(vb)}
	if opts.Format == "json" {
		return formatter.Success(c)
	}

	op := "="
	switch c.Result {
	case -1:
		op = "<"
	case 1:
		op = ">"
	}
	fmt.Fprintf(formatter.Writer, "%s %s %s\n", c.A, op, c.B)
	return nil
}
