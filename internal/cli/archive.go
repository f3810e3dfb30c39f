package cli

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/haikusw/JaqalPaw/internal/emulator"
	"github.com/haikusw/JaqalPaw/internal/store"
)

// ArchiveOptions holds flags for the archive commands.
type ArchiveOptions struct {
	*RootOptions
	Database string
}

// NewArchiveCommand creates the archive command and its subcommands.
func NewArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ArchiveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect archived compilations",
		Long: `Inspect the SQLite archive written by compile --db and batch --db.

Compilations are stored once per bytecode hash and can be replayed
through the emulator at any later time.

Exit codes:
  0 - Success
  1 - Replay failed
  2 - Command error (database not found, unknown id)`,
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkPersistentFlagRequired("db")

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List archived compilations",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchiveList(cmd.Context(), opts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "replay <id>",
		Short:         "Replay an archived compilation through the emulator",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchiveReplay(cmd.Context(), opts, args[0], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete an archived compilation",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchiveDelete(cmd.Context(), opts, args[0], cmd)
		},
	})
	return cmd
}

func (o *ArchiveOptions) open(f *OutputFormatter) (*store.Store, error) {
	st, err := store.Open(o.Database)
	if err != nil {
		_ = f.Error("E_DATABASE", err.Error())
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func notFound(f *OutputFormatter, id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		_ = f.Error("E_NOT_FOUND", fmt.Sprintf("no compilation %q", id))
		return WrapExitError(ExitCommandError, "compilation not found", err)
	}
	_ = f.Error("E_DATABASE", err.Error())
	return WrapExitError(ExitCommandError, "database error", err)
}

func runArchiveList(ctx context.Context, opts *ArchiveOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout())
	st, err := opts.open(f)
	if err != nil {
		return err
	}
	defer st.Close()

	summaries, err := st.List(ctx)
	if err != nil {
		_ = f.Error("E_DATABASE", err.Error())
		return WrapExitError(ExitCommandError, "failed to list compilations", err)
	}
	if f.Format == "json" {
		return f.Success(summaries, "")
	}
	if len(summaries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No compilations archived.")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %-24s %2d ch %d boards %6d words\n", s.ID, s.Label, s.Channels, s.Boards, s.Words)
		f.Detail("hash %s", s.Hash)
	}
	return nil
}

func runArchiveReplay(ctx context.Context, opts *ArchiveOptions, id string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout())
	st, err := opts.open(f)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.Replay(ctx, id,
		emulator.WithLogger(opts.Logger()),
		emulator.WithMetrics(opts.metrics),
	)
	if errors.Is(err, store.ErrNotFound) {
		return notFound(f, id, err)
	}
	if err != nil {
		_ = f.Error("E_DECODE", err.Error())
		return WrapExitError(ExitFailure, "replay failed", err)
	}

	out := summarizeRecords(records)
	if f.Format == "json" {
		return f.Success(out, "")
	}
	for _, r := range out {
		fmt.Fprintf(cmd.OutOrStdout(), "ch %-3d %-3s %4d segments %10d cycles\n", r.Channel, r.Mod, r.Segments, r.Cycles)
	}
	f.Mark(true, "replayed %s", id)
	return nil
}

func runArchiveDelete(ctx context.Context, opts *ArchiveOptions, id string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout())
	st, err := opts.open(f)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Delete(ctx, id); err != nil {
		return notFound(f, id, err)
	}
	return f.Success(map[string]string{"deleted": id}, "deleted "+id)
}
