package emulator

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/haikusw/JaqalPaw/internal/lut"
	"github.com/haikusw/JaqalPaw/internal/metrics"
	"github.com/haikusw/JaqalPaw/internal/spline"
	"github.com/haikusw/JaqalPaw/internal/wire"
)

// ErrUnknownMode is returned for a word whose mode field selects no mode.
var ErrUnknownMode = errors.New("unknown programming mode")

// zeroOrderFastPath would record pulses without higher-order terms as a
// single held point instead of evaluating the spline. It is disabled.
const zeroOrderFastPath = false

// Decoder replays words against its own lookup-table store and accumulates
// the decoded waveforms. A Decoder is one replay session and is not safe
// for concurrent use.
type Decoder struct {
	store     *lut.Store
	evaluator spline.Evaluator
	records   map[Key]*Record
	board     int
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithStore replays into s instead of a fresh store.
func WithStore(s *lut.Store) Option {
	return func(d *Decoder) {
		d.store = s
	}
}

// WithEvaluator replaces the forward-difference spline evaluator.
func WithEvaluator(e spline.Evaluator) Option {
	return func(d *Decoder) {
		d.evaluator = e
	}
}

// WithBoard sets the board whose words are decoded. Word channels are
// board-local; records and tables are keyed by board*8 + local channel.
func WithBoard(board int) Option {
	return func(d *Decoder) {
		d.board = board
	}
}

// WithLogger sets the logger. Every word is logged at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(d *Decoder) {
		d.logger = l
	}
}

// WithMetrics sets the collectors updated per decoded word.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Decoder) {
		d.metrics = m
	}
}

// NewDecoder returns a decoder with a fresh store unless WithStore is given.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{
		evaluator: spline.ForwardDifference{},
		records:   make(map[Key]*Record),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.store == nil {
		d.store = lut.New()
	}
	return d
}

// Store is the lookup-table store the decoder programs.
func (d *Decoder) Store() *lut.Store {
	return d.store
}

// Records returns every decoded stream.
func (d *Decoder) Records() map[Key]*Record {
	return d.records
}

// Record returns the decoded stream of (channel, m), if any.
func (d *Decoder) Record(channel int, m wire.ModType) (*Record, bool) {
	r, ok := d.records[Key{Channel: channel, ModType: m}]
	return r, ok
}

// DecodeAll decodes words in order, stopping at the first error.
func (d *Decoder) DecodeAll(words []wire.Word) error {
	for i, w := range words {
		if err := d.Decode(w); err != nil {
			return errors.Wrapf(err, "word %d", i)
		}
	}
	return nil
}

// DecodeBytes splits b into words and decodes them.
func (d *Decoder) DecodeBytes(b []byte) error {
	words, err := wire.Split(b)
	if err != nil {
		return err
	}
	return d.DecodeAll(words)
}

// Decode dispatches one word on its mode field.
func (d *Decoder) Decode(w wire.Word) error {
	err := d.decode(w)
	if err != nil {
		d.metrics.DecodeFailed()
	}
	return err
}

func (d *Decoder) decode(w wire.Word) error {
	h := w.Header()
	ch := d.channel(h.Channel)

	d.logger.Debug("decode word",
		zap.Int("channel", ch),
		zap.Stringer("mod_type", h.ModType),
		zap.Stringer("mode", h.Mode),
		zap.Uint8("shift", h.Shift),
		zap.Uint8("count", h.Count),
	)

	switch {
	case h.Mode == wire.ModeBypass:
		err := d.bypass(w)
		if err == nil {
			d.metrics.Decoded(h.Mode.String())
		}
		return err
	case h.Mode == wire.ModeProgramGateTable:
		if err := d.store.ProgramGateTable(ch, w); err != nil {
			return err
		}
	case h.Mode == wire.ModeProgramSequenceMap:
		if err := d.store.ProgramSequenceMap(ch, w); err != nil {
			return err
		}
	case h.Mode == wire.ModeProgramPulseTable:
		d.store.ProgramPulseTable(ch, w)
	case h.Mode.IsRun():
		if err := d.run(ch, w); err != nil {
			return err
		}
	default:
		return errors.Wrapf(ErrUnknownMode, "mode %03b on channel %d", uint8(h.Mode), ch)
	}
	d.metrics.Decoded(h.Mode.String())
	return nil
}

func (d *Decoder) channel(local uint8) int {
	return d.board*wire.ChannelsPerBoard + int(local)
}

// run expands every gate of a run word and decodes the stored pulses as
// bypass words.
func (d *Decoder) run(ch int, w wire.Word) error {
	ids, err := w.GateIDs()
	if err != nil {
		return lut.RecordCountError(ch, w, err)
	}
	d.logger.Debug("run gates", zap.Int("channel", ch), zap.Uint16s("gate_ids", ids))
	for _, gid := range ids {
		pulses, err := d.store.ResolveGate(ch, gid)
		if err != nil {
			return err
		}
		for _, p := range pulses {
			if err := d.bypass(p); err != nil {
				return errors.Wrapf(err, "gate %d", gid)
			}
		}
	}
	return nil
}

// bypass decodes the payload of w whatever its mode field says.
func (d *Decoder) bypass(w wire.Word) error {
	h := w.Header()
	p := w.Payload()
	if p.Duration < 0 {
		return errors.Errorf("negative duration %d", p.Duration)
	}

	key := Key{Channel: d.channel(h.Channel), ModType: h.ModType}
	rec, ok := d.records[key]
	if !ok {
		rec = newRecord(h.WaitTrigger, h.EnableMask)
		d.records[key] = rec
	}
	rec.Segments = append(rec.Segments, Segment{
		Start:       rec.End(),
		Cycles:      p.Duration,
		U:           p.U,
		Shift:       h.Shift,
		WaitTrigger: h.WaitTrigger,
		EnableMask:  h.EnableMask,
	})

	if zeroOrderFastPath && p.U[1] == 0 && p.U[2] == 0 && p.U[3] == 0 {
		rec.appendStep(p.Duration, Convert(h.ModType, float64(p.U[0])), h.WaitTrigger, h.EnableMask)
		return nil
	}

	raw := d.evaluator.Evaluate(spline.Scale(p.U, h.Shift), int(p.Duration))
	samples := make([]float64, len(raw))
	for i, v := range raw {
		samples[i] = Convert(h.ModType, v)
	}
	rec.appendSamples(samples, h.WaitTrigger, h.EnableMask)
	return nil
}
