package main

import (
	"fmt"
	"io"

	"github.com/hupe1980/gbcore"
	"github.com/hupe1980/gbcore/snapshot"
	"github.com/hupe1980/gbcore/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	saveFlag        = "save"
	compressionFlag = "compression"
)

func newDemoCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the insert, finalize, delete, finalize scenario on a 5x5 matrix",
		Long: `Inserts (1,1)=10, (1,1)=20 and (2,2)=30 into a 5x5 fp64 matrix, finalizes,
deletes (2,2) and finalizes again. Prints the surviving entries and, with --save,
writes the result as a snapshot to the configured blob store.`,
		Args: cobra.NoArgs,
		PreRun: func(cmd *cobra.Command, _ []string) {
			flags := cmd.Flags()
			mustBindPFlag(v, saveFlag, flags.Lookup(saveFlag))
			mustBindPFlag(v, compressionFlag, flags.Lookup(compressionFlag))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDemo(cmd, v)
		},
	}

	flags := cmd.Flags()
	flags.Bool(saveFlag, false, "save the result as a snapshot")
	flags.String(compressionFlag, "zstd", "snapshot compression (none, lz4, zstd)")
	return cmd
}

func runDemo(cmd *cobra.Command, v *viper.Viper) error {
	ctx := cmd.Context()
	rt, err := newRuntime(v, cmd)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	m, err := rt.NewMatrix(types.FP64, 5, 5)
	if err != nil {
		return err
	}
	defer func() { _ = m.Free() }()

	for _, t := range []struct {
		row, col uint64
		val      float64
	}{{1, 1, 10}, {1, 1, 20}, {2, 2, 30}} {
		if err := m.InsertFloat64(t.row, t.col, t.val); err != nil {
			return err
		}
	}
	if err := m.Finalize(); err != nil {
		return err
	}
	if err := m.Delete(2, 2); err != nil {
		return err
	}
	if err := m.Finalize(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := printEntries(out, m); err != nil {
		return err
	}

	if !v.GetBool(saveFlag) {
		return nil
	}
	c, err := snapshot.ParseCompression(v.GetString(compressionFlag))
	if err != nil {
		return err
	}
	store, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	name, err := snapshot.Save(ctx, store, m, snapshot.Options{Compression: c})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "saved %s\n", name)
	return err
}

func printEntries(w io.Writer, m *gbcore.Matrix) error {
	n, err := m.Nvals()
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "nvals: %d\n", n); err != nil {
		return err
	}

	var werr error
	err = m.ForEach(func(row, col uint64, val []byte) bool {
		f, err := types.Float64Of(val, m.Type())
		if err != nil {
			werr = err
			return false
		}
		_, werr = fmt.Fprintf(w, "(%d,%d) = %g\n", row, col, f)
		return werr == nil
	})
	if err != nil {
		return err
	}
	return werr
}
