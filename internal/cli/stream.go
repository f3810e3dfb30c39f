package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/haikusw/JaqalPaw/internal/wire"
)

// StreamOptions holds flags for the stream command.
type StreamOptions struct {
	*RootOptions
	CompileFlags
}

// StreamWord is one line of the JSON stream listing.
type StreamWord struct {
	Board    int    `json:"board"`
	Channel  int    `json:"channel"`
	Mod      string `json:"mod"`
	Duration int64  `json:"duration"`
	Trigger  bool   `json:"wait_trigger"`
	Hex      string `json:"hex"`
}

// NewStreamCommand creates the stream command.
func NewStreamCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StreamOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stream <circuit>",
		Short: "Print the time-ordered bypass word stream of a circuit",
		Long: `Print the bypass word stream of a circuit: every loop unrolled, every
segment as one word, ordered by start time across the channels of each
board. Boards are listed in order; channels are reported globally.

Examples:
  octet stream circuit.yaml
  octet stream circuit.yaml --mask 3 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStream(opts, args[0], cmd)
		},
	}

	opts.CompileFlags.register(cmd)
	return cmd
}

func runStream(opts *StreamOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout())

	p, err := newPipeline(opts.RootOptions, &opts.CompileFlags, cmd)
	if err != nil {
		return compileFailure(f, path, err)
	}
	c, err := p.compile(path)
	if err != nil {
		return compileFailure(f, path, err)
	}

	out := make([]StreamWord, 0, wire.Count(c.Stream))
	for b, words := range c.Stream {
		for _, w := range words {
			out = append(out, describeWord(b, w))
		}
	}
	if f.Format == "json" {
		return f.Success(out, "")
	}
	writeStream(f, cmd.OutOrStdout(), out)
	return nil
}

func describeWord(board int, w wire.Word) StreamWord {
	h := w.Header()
	return StreamWord{
		Board:    board,
		Channel:  board*wire.ChannelsPerBoard + int(h.Channel),
		Mod:      h.ModType.String(),
		Duration: w.Payload().Duration,
		Trigger:  h.WaitTrigger,
		Hex:      w.Hex(),
	}
}

func writeStream(f *OutputFormatter, w io.Writer, words []StreamWord) {
	for _, sw := range words {
		trig := " "
		if sw.Trigger {
			trig = "T"
		}
		fmt.Fprintf(w, "%s %s %d %s %8d\n", sw.Hex, trig, sw.Channel, sw.Mod, sw.Duration)
	}
	f.Detail("%d words", len(words))
}
