package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/haikusw/JaqalPaw/internal/artifact"
)

// BatchOptions holds flags for the batch command.
type BatchOptions struct {
	*RootOptions
	CompileFlags
	OutDir   string
	Jobs     int
	Database string
}

// BatchItem is the outcome of one circuit of a batch.
type BatchItem struct {
	Circuit string         `json:"circuit"`
	Pass    bool           `json:"pass"`
	Error   string         `json:"error,omitempty"`
	Result  *CompileResult `json:"result,omitempty"`
}

// BatchResult holds the overall batch result.
type BatchResult struct {
	Items  []BatchItem `json:"items"`
	Passed int         `json:"passed"`
	Failed int         `json:"failed"`
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "batch <circuit>...",
		Short: "Compile independent circuits concurrently",
		Long: `Compile several circuits with the same settings. Circuits are compiled
concurrently; a failing circuit does not stop the others. Artifacts are
written to the output directory as <name>.octet.

Exit codes:
  0 - Every circuit compiled
  1 - One or more circuits failed
  2 - Command error

Examples:
  octet batch circuits/*.yaml -o build/
  octet batch a.yaml b.yaml --jobs 2 --db archive.db`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), opts, args, cmd)
		},
	}

	opts.CompileFlags.register(cmd)
	cmd.Flags().StringVarP(&opts.OutDir, "output", "o", "", "artifact directory")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", runtime.NumCPU(), "concurrent compilations")
	cmd.Flags().StringVar(&opts.Database, "db", "", "archive every compiled circuit in this SQLite database")

	return cmd
}

func runBatch(ctx context.Context, opts *BatchOptions, paths []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout())

	p, err := newPipeline(opts.RootOptions, &opts.CompileFlags, cmd)
	if err != nil {
		return compileFailure(f, "batch", err)
	}
	if opts.OutDir != "" {
		if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
			_ = f.Error("E_WRITE", err.Error())
			return WrapExitError(ExitCommandError, "failed to create output directory", err)
		}
	}

	results := make([]*compiled, len(paths))
	failures := make([]error, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(opts.Jobs, len(paths))))
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, err := p.compile(path)
			if err != nil {
				// circuit failures are reported per item
				failures[i] = err
				return nil
			}
			if opts.OutDir != "" {
				if err := artifact.WriteFile(artifactPath(opts.OutDir, path), c.Artifact()); err != nil {
					return errors.Wrap(err, path)
				}
			}
			results[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		_ = f.Error("E_WRITE", err.Error())
		return WrapExitError(ExitCommandError, "batch aborted", err)
	}

	var ok []*compiled
	for _, c := range results {
		if c != nil {
			ok = append(ok, c)
		}
	}
	if opts.Database != "" && len(ok) > 0 {
		if _, err := archive(ctx, opts.Database, ok...); err != nil {
			_ = f.Error("E_ARCHIVE", err.Error())
			return WrapExitError(ExitCommandError, "failed to archive", err)
		}
	}

	out := BatchResult{Items: make([]BatchItem, len(paths))}
	for i, path := range paths {
		item := BatchItem{Circuit: path}
		if c := results[i]; c != nil {
			r := summarize(c)
			item.Pass = true
			item.Result = &r
			out.Passed++
			f.Mark(true, "%s %s", path, r.Hash[:min(len(r.Hash), 12)])
		} else {
			item.Error = failures[i].Error()
			out.Failed++
			f.Mark(false, "%s", path)
			f.Detail("%s", item.Error)
		}
		out.Items[i] = item
	}
	opts.Logger().Info("batch done", zap.Int("passed", out.Passed), zap.Int("failed", out.Failed))

	if f.Format == "json" {
		if err := f.Success(out, ""); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d passed, %d failed\n", out.Passed, out.Failed)
	}
	if out.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d circuit(s) failed", out.Failed))
	}
	return nil
}

func artifactPath(dir, circuit string) string {
	base := filepath.Base(circuit)
	return filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+".octet")
}
