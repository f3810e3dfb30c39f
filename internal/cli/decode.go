package cli

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/haikusw/JaqalPaw/internal/artifact"
	"github.com/haikusw/JaqalPaw/internal/emulator"
)

// DecodeOptions holds flags for the decode command.
type DecodeOptions struct {
	*RootOptions
	Stream bool // decode the bypass stream instead of the bytecode
}

// RecordSummary describes one decoded output stream.
type RecordSummary struct {
	Channel  int     `json:"channel"`
	Mod      string  `json:"mod"`
	Segments int     `json:"segments"`
	Cycles   int64   `json:"cycles"`
	Seconds  float64 `json:"seconds"`
	Final    float64 `json:"final"`
}

// NewDecodeCommand creates the decode command.
func NewDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DecodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "decode <artifact>",
		Short: "Decode an artifact into waveforms",
		Long: `Decode a compiled artifact with the hardware emulator and summarize the
resulting waveforms per channel and modulation type.

Each board is replayed by its own emulator: the programming block fills
its lookup tables, then the sequence block runs against them. With
--stream, each board's bypass stream is decoded by its own emulator.

Examples:
  octet decode circuit.octet
  octet decode circuit.octet --stream --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Stream, "stream", false, "decode the bypass stream")
	return cmd
}

func runDecode(opts *DecodeOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout())

	a, err := artifact.ReadFile(path)
	if err != nil {
		_ = f.Error("E_READ", err.Error())
		return WrapExitError(ExitCommandError, "failed to read artifact", err)
	}

	decoderOpts := []emulator.Option{
		emulator.WithLogger(opts.Logger()),
		emulator.WithMetrics(opts.metrics),
	}
	records := make(map[emulator.Key]*emulator.Record)
	if opts.Stream {
		for b, words := range a.Stream {
			d := emulator.NewDecoder(append(decoderOpts, emulator.WithBoard(b))...)
			if err := d.DecodeAll(words); err != nil {
				err = errors.Wrapf(err, "board %d stream", b)
				_ = f.Error("E_DECODE", err.Error())
				return WrapExitError(ExitFailure, "decode failed", err)
			}
			maps.Copy(records, d.Records())
		}
	} else {
		for b := range max(len(a.Programming), len(a.Sequence)) {
			d := emulator.NewDecoder(append(decoderOpts, emulator.WithBoard(b))...)
			if err := decodeBoard(d, a, b); err != nil {
				_ = f.Error("E_DECODE", err.Error())
				return WrapExitError(ExitFailure, "decode failed", err)
			}
			maps.Copy(records, d.Records())
		}
	}

	out := summarizeRecords(records)
	if f.Format == "json" {
		return f.Success(out, "")
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%-8s %-4s %9s %10s %12s %12s\n", "channel", "mod", "segments", "cycles", "seconds", "final")
	for _, r := range out {
		fmt.Fprintf(w, "%-8d %-4s %9d %10d %12.4g %12.6g\n", r.Channel, r.Mod, r.Segments, r.Cycles, r.Seconds, r.Final)
	}
	f.Detail("%s: %d records", a.Label, len(out))
	return nil
}

func decodeBoard(d *emulator.Decoder, a *artifact.Artifact, board int) error {
	if board < len(a.Programming) {
		if err := d.DecodeAll(a.Programming[board]); err != nil {
			return errors.Wrapf(err, "board %d programming", board)
		}
	}
	if board < len(a.Sequence) {
		if err := d.DecodeAll(a.Sequence[board]); err != nil {
			return errors.Wrapf(err, "board %d sequence", board)
		}
	}
	return nil
}

// summarizeRecords orders records by channel, then modulation type.
func summarizeRecords(records map[emulator.Key]*emulator.Record) []RecordSummary {
	keys := slices.SortedFunc(maps.Keys(records), func(a, b emulator.Key) int {
		return cmp.Or(cmp.Compare(a.Channel, b.Channel), cmp.Compare(a.ModType, b.ModType))
	})
	out := make([]RecordSummary, len(keys))
	for i, k := range keys {
		rec := records[k]
		var cycles int64
		for _, s := range rec.Segments {
			cycles += s.Cycles
		}
		out[i] = RecordSummary{
			Channel:  k.Channel,
			Mod:      k.ModType.String(),
			Segments: len(rec.Segments),
			Cycles:   cycles,
			Seconds:  emulator.Seconds(cycles),
			Final:    rec.Value[len(rec.Value)-1],
		}
	}
	return out
}
