// Package resolve re-finds recorded elements in a live document. A signature
// is matched through a staged pipeline, cheapest and most trustworthy first;
// candidates from every stage are pooled, deduplicated by node identity and
// scored, and the pipeline only answers found when one candidate clearly
// leads. Anything less decisive is reported as ambiguous rather than
// guessed at.
package resolve

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nathanhui97/autoflow/internal/dom"
	"github.com/nathanhui97/autoflow/internal/signature"
)

// Stage confidences. Bands overlap deliberately: a weak identity match must
// stay contestable by a strong text match plus corroboration.
const (
	confTestID    = 0.95
	confStableID  = 0.90
	confAriaLabel = 0.85
	confName      = 0.80

	confRoleTextExact      = 0.85
	confRoleTextNormalized = 0.78

	confTextExact      = 0.80
	confTextNormalized = 0.70
	confTextPartialLo  = 0.50
	confTextPartialHi  = 0.60
	confPlaceholder    = 0.70

	confStructureExact = 0.60
	confStructurePath  = 0.55
	confStructureLoose = 0.50

	confSelectorIdeal    = 0.70
	confSelectorStable   = 0.65
	confSelectorSpecific = 0.55
	confSelectorPath     = 0.45
)

const (
	// Additive adjustments from corroborating context signals. Small on
	// purpose: they break ties, they do not override stage trust.
	bonusForm     = 0.10
	bonusLandmark = 0.05
	bonusLabel    = 0.03

	// leadGap is the score distance that lets a leader win outright.
	leadGap = 0.15

	// partialWordMatch is the minimum significant-word overlap for a
	// partial text match.
	partialWordMatch = 0.7

	maxAmbiguous = 5
)

const (
	defaultTimeout  = 5 * time.Second
	defaultInterval = 250 * time.Millisecond
)

// Options tune one resolution run.
type Options struct {
	// Timeout bounds the whole run including retry rounds. Zero means 5s.
	Timeout time.Duration
	// Interval paces retry rounds after an empty round. Zero means 250ms.
	Interval time.Duration
	// AutoPickBest picks the leading candidate instead of answering
	// ambiguous when disambiguation cannot separate the field.
	AutoPickBest bool
}

func (o Options) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return defaultTimeout
}

func (o Options) interval() time.Duration {
	if o.Interval > 0 {
		return o.Interval
	}
	return defaultInterval
}

// Outcome classifies a resolution.
type Outcome string

const (
	OutcomeFound     Outcome = "found"
	OutcomeAmbiguous Outcome = "ambiguous"
	OutcomeNotFound  Outcome = "not_found"
)

// Candidate is one scored contender, surfaced when a resolution ends
// ambiguous so the caller can show what competed.
type Candidate struct {
	Element    dom.Element `json:"-"`
	Descriptor string      `json:"descriptor"`
	Confidence float64     `json:"confidence"`
	Method     string      `json:"method"`
}

// Result is the structured answer of one resolution. Failures are values,
// not errors: not-found and ambiguous feed step results instead of aborting
// the run.
type Result struct {
	Outcome    Outcome     `json:"outcome"`
	Element    dom.Element `json:"-"`
	Confidence float64     `json:"confidence,omitempty"`
	Method     string      `json:"method,omitempty"`
	// Candidates holds the top contenders when the outcome is ambiguous.
	Candidates []Candidate `json:"candidates,omitempty"`
	// Tried lists the methods attempted, for not-found diagnostics.
	Tried   []string      `json:"tried,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
	Err     error         `json:"-"`
	// Scope is the document the target resolved in. ResolveAcrossBoundaries
	// sets it so callers act inside the boundary scope the element lives in;
	// without boundaries it equals the queried document.
	Scope dom.Document `json:"-"`
}

// Found reports whether the resolution produced a usable element.
func (r Result) Found() bool { return r.Outcome == OutcomeFound }

// Resolver re-finds elements. It keeps no per-run state and may be shared.
type Resolver struct {
	log *zap.Logger
}

// NewResolver returns a Resolver. A nil logger disables logging.
func NewResolver(log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{log: log.Named("resolve")}
}

// scored is a pooled candidate with its provisional confidence.
type scored struct {
	el     dom.Element
	snap   dom.Snapshot
	conf   float64
	method string
}

// pool deduplicates candidates by node identity, keeping the highest
// confidence seen for each node. Insertion order is preserved so equal
// scores keep stage order.
type pool struct {
	index map[string]int
	list  []scored
}

func newPool() *pool { return &pool{index: make(map[string]int)} }

func (p *pool) add(m match, conf float64, method string) {
	key := m.el.NodeKey()
	if i, ok := p.index[key]; ok {
		if conf > p.list[i].conf {
			p.list[i].conf = conf
			p.list[i].method = method
		}
		return
	}
	p.index[key] = len(p.list)
	p.list = append(p.list, scored{el: m.el, snap: m.snap, conf: conf, method: method})
}

// Resolve runs the staged pipeline against doc until it produces candidates
// or the budget runs out. An empty round waits and retries, since the page
// may still be rendering; found and ambiguous answers return immediately.
func (r *Resolver) Resolve(ctx context.Context, doc dom.Document, sig signature.ElementSignature, opts Options) Result {
	start := time.Now()
	if err := sig.Validate(); err != nil {
		return Result{
			Outcome: OutcomeNotFound,
			Elapsed: time.Since(start),
			Err:     fmt.Errorf("resolve: signature: %w", err),
		}
	}

	deadline := start.Add(opts.timeout())
	ticker := time.NewTicker(opts.interval())
	defer ticker.Stop()

	var tried []string
	for {
		p := newPool()
		tried = r.gather(ctx, doc, sig, p)
		if len(p.list) > 0 {
			return r.decide(ctx, doc, sig, p.list, opts, start, tried)
		}
		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return Result{Outcome: OutcomeNotFound, Tried: tried, Elapsed: time.Since(start), Err: ctx.Err()}
		case <-ticker.C:
		}
	}
	r.log.Debug("no candidates after retries",
		zap.String("signature", sig.Label()),
		zap.Strings("tried", tried))
	return Result{Outcome: OutcomeNotFound, Tried: tried, Elapsed: time.Since(start)}
}

// decide scores the pooled candidates and settles on an outcome.
func (r *Resolver) decide(ctx context.Context, doc dom.Document, sig signature.ElementSignature, cands []scored, opts Options, start time.Time, tried []string) Result {
	r.applyBonuses(ctx, doc, sig, cands)
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].conf > cands[j].conf })

	if res, ok := r.winner(cands, tried, start); ok {
		return res
	}
	cands = r.disambiguate(ctx, doc, sig, cands)
	if res, ok := r.winner(cands, tried, start); ok {
		return res
	}

	if opts.AutoPickBest {
		lead := cands[0]
		lead.method += "+autopick"
		return r.found(lead, tried, start)
	}
	top := cands
	if len(top) > maxAmbiguous {
		top = top[:maxAmbiguous]
	}
	out := make([]Candidate, len(top))
	for i, c := range top {
		out[i] = Candidate{Element: c.el, Descriptor: describe(c.snap), Confidence: c.conf, Method: c.method}
	}
	r.log.Debug("resolution ambiguous",
		zap.String("signature", sig.Label()),
		zap.Int("candidates", len(cands)))
	return Result{Outcome: OutcomeAmbiguous, Candidates: out, Tried: tried, Elapsed: time.Since(start)}
}

// winner returns a found result when a single candidate remains or the
// leader outruns the runner-up by the required gap.
func (r *Resolver) winner(cands []scored, tried []string, start time.Time) (Result, bool) {
	if len(cands) == 1 || cands[0].conf-cands[1].conf >= leadGap {
		return r.found(cands[0], tried, start), true
	}
	return Result{}, false
}

func (r *Resolver) found(c scored, tried []string, start time.Time) Result {
	r.log.Debug("element resolved",
		zap.String("method", c.method),
		zap.Float64("confidence", c.conf),
		zap.String("element", describe(c.snap)))
	return Result{
		Outcome:    OutcomeFound,
		Element:    c.el,
		Confidence: c.conf,
		Method:     c.method,
		Tried:      tried,
		Elapsed:    time.Since(start),
	}
}

// describe renders a short diagnostic handle for a candidate.
func describe(s dom.Snapshot) string {
	var b strings.Builder
	b.WriteString(s.Tag)
	if s.ID != "" {
		b.WriteString("#" + s.ID)
	} else if cls := s.Classes(); len(cls) > 0 {
		b.WriteString("." + cls[0])
	}
	if t := strings.TrimSpace(s.Text); t != "" {
		r := []rune(t)
		if len(r) > 40 {
			t = string(r[:40]) + "..."
		}
		fmt.Fprintf(&b, " %q", t)
	}
	return b.String()
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
