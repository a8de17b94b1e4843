package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/hupe1980/gbcore/snapshot"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	nameFlag    = "name"
	entriesFlag = "entries"
)

func newInspectCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the shape and storage format of a snapshot",
		Long:  "Reads a snapshot (the one CURRENT points at unless --name is given) and prints its type, shape, format and entry count.",
		Args:  cobra.NoArgs,
		PreRun: func(cmd *cobra.Command, _ []string) {
			flags := cmd.Flags()
			mustBindPFlag(v, nameFlag, flags.Lookup(nameFlag))
			mustBindPFlag(v, entriesFlag, flags.Lookup(entriesFlag))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(cmd, v)
		},
	}

	flags := cmd.Flags()
	flags.String(nameFlag, "", "snapshot name (default: latest)")
	flags.Bool(entriesFlag, false, "also print every entry")
	return cmd
}

func runInspect(cmd *cobra.Command, v *viper.Viper) error {
	ctx := cmd.Context()
	store, err := openStore(ctx, v)
	if err != nil {
		return err
	}

	name := v.GetString(nameFlag)
	if name == "" {
		if name, err = snapshot.Latest(ctx, store); err != nil {
			return err
		}
	}
	e, err := snapshot.Read(ctx, store, name, nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "name:\t%s\n", name)
	fmt.Fprintf(tw, "type:\t%s\n", e.Type)
	fmt.Fprintf(tw, "shape:\t%dx%d\n", e.Nrows, e.Ncols)
	fmt.Fprintf(tw, "format:\t%s\n", e.Format)
	fmt.Fprintf(tw, "iso:\t%t\n", e.Iso)
	fmt.Fprintf(tw, "nvals:\t%d\n", e.Nvals())
	if err := tw.Flush(); err != nil {
		return err
	}

	if !v.GetBool(entriesFlag) {
		return nil
	}
	rt, err := newRuntime(v, cmd)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()
	m, err := rt.Import(e)
	if err != nil {
		return err
	}
	defer func() { _ = m.Free() }()
	return printEntries(out, m)
}
