package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/haikusw/JaqalPaw/internal/artifact"
	"github.com/haikusw/JaqalPaw/internal/store"
	"github.com/haikusw/JaqalPaw/internal/wire"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	CompileFlags
	Output   string // artifact file
	Database string // archive; empty skips archiving
}

// CompileResult is the JSON payload of a successful compile.
type CompileResult struct {
	Circuit     string        `json:"circuit"`
	Hash        string        `json:"hash"`
	Channels    int           `json:"channels"`
	UniqueGates []int         `json:"unique_gates"`
	Boards      []BoardResult `json:"boards"`
	Stream      int           `json:"stream_words"`
	Output      string        `json:"output,omitempty"`
	ArchiveID   string        `json:"archive_id,omitempty"`
}

// BoardResult counts the words of one board.
type BoardResult struct {
	Programming int `json:"programming"`
	Sequence    int `json:"sequence"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <circuit>",
		Short: "Compile a circuit into lookup-table bytecode",
		Long: `Compile a circuit into lookup-table bytecode.

Gates are deduplicated per channel, ranked by how often they run and
written to the gate, sequence and pulse tables of each board. The
programming block loads the tables; the sequence block runs the circuit.

Exit codes:
  0 - Compilation succeeded
  1 - Compile error (unknown gate, table overflow, etc.)
  2 - Command error (unreadable files, invalid config)

Examples:
  octet compile circuit.yaml -o circuit.octet
  octet compile circuit.yaml --pulses gates.cue --channels 16
  octet compile circuit.yaml --set angle=0.25 --db archive.db
  octet compile circuit.yaml --from 2 --last-packet -o tail.octet`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd.Context(), opts, args[0], cmd)
		},
	}

	opts.CompileFlags.register(cmd)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "artifact file path")
	cmd.Flags().StringVar(&opts.Database, "db", "", "archive the bytecode in this SQLite database")

	return cmd
}

func runCompile(ctx context.Context, opts *CompileOptions, path string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout())

	p, err := newPipeline(opts.RootOptions, &opts.CompileFlags, cmd)
	if err != nil {
		return compileFailure(f, path, err)
	}
	c, err := p.compile(path)
	if err != nil {
		return compileFailure(f, path, err)
	}

	result := summarize(c)
	if opts.Output != "" {
		if err := artifact.WriteFile(opts.Output, c.Artifact()); err != nil {
			_ = f.Error("E_WRITE", err.Error())
			return WrapExitError(ExitCommandError, "failed to write artifact", err)
		}
		result.Output = opts.Output
	}
	if opts.Database != "" {
		id, err := archive(ctx, opts.Database, c)
		if err != nil {
			_ = f.Error("E_ARCHIVE", err.Error())
			return WrapExitError(ExitCommandError, "failed to archive", err)
		}
		result.ArchiveID = id
	}

	opts.Logger().Info("compiled",
		zap.String("circuit", path),
		zap.String("hash", c.Hash),
		zap.Int("words", c.Bytecode.Words()),
	)
	return f.Success(result, formatCompile(f, result))
}

func summarize(c *compiled) CompileResult {
	state := c.Program.State()
	r := CompileResult{
		Circuit:     c.Path,
		Hash:        c.Hash,
		Channels:    c.Program.Channels(),
		UniqueGates: make([]int, state.Channels()),
		Stream:      wire.Count(c.Stream),
	}
	for ch := range state.Channels() {
		r.UniqueGates[ch] = state.UniqueGates(ch)
	}
	for b := range c.Bytecode.Programming {
		r.Boards = append(r.Boards, BoardResult{
			Programming: len(c.Bytecode.Programming[b]),
			Sequence:    len(c.Bytecode.Sequence[b]),
		})
	}
	return r
}

func formatCompile(f *OutputFormatter, r CompileResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s (%d channels)\n", f.ok.Sprint("✓"), r.Circuit, r.Channels)
	fmt.Fprintf(&sb, "  hash: %s\n", r.Hash)
	fmt.Fprintf(&sb, "  unique gates: %v\n", r.UniqueGates)
	for b, board := range r.Boards {
		fmt.Fprintf(&sb, "  board %d: %d programming, %d sequence words\n", b, board.Programming, board.Sequence)
	}
	fmt.Fprintf(&sb, "  stream: %d words", r.Stream)
	if r.Output != "" {
		fmt.Fprintf(&sb, "\n  wrote %s", r.Output)
	}
	if r.ArchiveID != "" {
		fmt.Fprintf(&sb, "\n  archived as %s", r.ArchiveID)
	}
	return sb.String()
}

// archive saves c in the database at path and returns its id.
func archive(ctx context.Context, path string, cs ...*compiled) (string, error) {
	st, err := store.Open(path)
	if err != nil {
		return "", err
	}
	defer st.Close()

	var id string
	for _, c := range cs {
		if id, err = st.Save(ctx, c.Compilation()); err != nil {
			return "", errors.Wrap(err, c.Path)
		}
	}
	return id, nil
}
