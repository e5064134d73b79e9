package emotion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/natea/conversational-reflection/internal/observe"
	"github.com/natea/conversational-reflection/pkg/synth"
)

// defaultSourceTimeout bounds how long a directive computation may wait on
// the emotional-state source before falling back to neutral. Keeping this
// short matters: the session's turn is paused while the directive is
// computed.
const defaultSourceTimeout = time.Second

// Option is a functional option for configuring a [Mapper].
type Option func(*Mapper)

// WithTable overrides the directive table. The default is [DefaultTable].
func WithTable(t *Table) Option {
	return func(m *Mapper) {
		m.table = t
	}
}

// WithSourceTimeout sets the per-query deadline for the emotional-state
// source. The default is one second.
func WithSourceTimeout(d time.Duration) Option {
	return func(m *Mapper) {
		m.sourceTimeout = d
	}
}

// WithInsertionRule sets the markup placement rule used for inline-markup
// directives. The default is [synth.InsertUtteranceStart].
func WithInsertionRule(rule synth.InsertionRule) Option {
	return func(m *Mapper) {
		m.insertion = rule
	}
}

// WithMetrics counts source failures against met. Nil leaves source-failure
// instrumentation off.
func WithMetrics(met *observe.Metrics) Option {
	return func(m *Mapper) {
		m.metrics = met
	}
}

// Mapper is the single point where an emotional-state snapshot becomes a
// realized synthesizer directive. It carries no per-session state, so one
// Mapper safely serves every session; tone-change tracking belongs to the
// session that observes the change.
//
// Callers are responsible for invocation timing: ComputeDirective must be
// called at most once per bot utterance (the dialogue state machine guards
// this) because changing synthesizer state mid-speech artifacts the audio.
type Mapper struct {
	source        Source
	table         *Table
	sourceTimeout time.Duration
	insertion     synth.InsertionRule
	metrics       *observe.Metrics
}

// NewMapper creates a Mapper reading from source. A nil source is valid and
// behaves as a permanently unavailable one (every directive is neutral).
func NewMapper(source Source, opts ...Option) *Mapper {
	m := &Mapper{
		source:        source,
		table:         DefaultTable(),
		sourceTimeout: defaultSourceTimeout,
		insertion:     synth.InsertUtteranceStart,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// ComputeDirective queries the emotional-state source, buckets the
// intensity, looks up the base directive, applies body modifiers, and asks
// adapter to realize the result for the given voice profile.
//
// Failure semantics: a missing, failing, or slow source substitutes the
// neutral snapshot — ComputeDirective never returns an error for source
// unavailability, and the returned command is always usable (possibly the
// no-op command).
//
// The self profile never receives high-bucket directives: its intensity
// bucket is capped at medium regardless of the snapshot (ceiling, not
// default).
func (m *Mapper) ComputeDirective(ctx context.Context, adapter synth.Adapter, profile synth.Profile) (synth.Directive, synth.Command) {
	snap := m.fetchSnapshot(ctx)

	bucket := Bucket(snap.Intensity)
	if profile.Self && bucket == BucketHigh {
		bucket = BucketMedium
	}

	base := m.table.Lookup(snap.Primary, bucket)
	base = ApplyBodyModifiers(base, snap.Body)
	base = applyIntensityBoost(base, snap.Intensity)

	directive := m.buildDirective(base, adapter.Capabilities())
	return directive, adapter.Realize(directive)
}

// fetchSnapshot queries the source under the configured timeout and falls
// back to the neutral snapshot on any failure.
func (m *Mapper) fetchSnapshot(ctx context.Context) Snapshot {
	if m.source == nil {
		return NeutralSnapshot()
	}

	qctx, cancel := context.WithTimeout(ctx, m.sourceTimeout)
	defer cancel()

	snap, err := m.source.CurrentSnapshot(qctx)
	if err != nil {
		if m.metrics != nil {
			reason := "error"
			if errors.Is(err, context.DeadlineExceeded) {
				reason = "timeout"
			}
			m.metrics.RecordEmotionSourceError(ctx, reason)
		}
		slog.WarnContext(ctx, "emotional-state source unavailable, using neutral", "err", err)
		return NeutralSnapshot()
	}
	if !snap.Primary.IsValid() {
		snap.Primary = Neutral
	}
	if snap.Intensity < 0 {
		snap.Intensity = 0
	}
	if snap.Intensity > 1 {
		snap.Intensity = 1
	}
	return snap
}

// buildDirective picks a directive kind the adapter supports and fills the
// matching payload. Adapters supporting both kinds get inline markup, which
// needs no out-of-band round trip to the synthesizer.
func (m *Mapper) buildDirective(base BaseDirective, caps synth.Capabilities) synth.Directive {
	d := synth.Directive{
		Tone:     base.Tone,
		Speed:    base.Speed,
		Volume:   base.Loudness,
		Emphasis: base.Emphasis,
	}

	switch {
	case caps.InlineMarkup:
		d.Kind = synth.KindInlineMarkup
		d.Insertion = m.insertion
	case caps.ParameterSet:
		d.Kind = synth.KindParameterSet
		d.Params = map[string]string{
			"emotion":  base.Tone,
			"emphasis": fmt.Sprintf("%.2f", base.Emphasis),
		}
	default:
		// No capability at all (passthrough backend). Keep the parameter
		// kind so the adapter's no-op degradation path is exercised.
		d.Kind = synth.KindParameterSet
	}
	return d
}
