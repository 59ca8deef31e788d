// Package preview keeps a debounced structure tree of the editor buffer.
//
// Edits schedule a recompute after a quiet interval; every new edit
// supersedes the pending one. The text is read when the timer fires, not
// when it was scheduled. Only successful parses replace the previewed tree,
// so a half-typed buffer never blanks the preview. FlushNow bypasses the
// timer and applies whatever it gets, including clearing the tree on error.
package preview

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gopad/internal/engine"
	"gopad/internal/logging"
)

// DefaultQuietInterval is used when Options.Interval is zero.
const DefaultQuietInterval = 200 * time.Millisecond

// Parser produces structure trees. *engine.Bridge satisfies it.
type Parser interface {
	Parse(ctx context.Context, text string) engine.Result
}

// Options configures a Preview.
type Options struct {
	// Interval is the quiet period after the last edit.
	Interval time.Duration

	// Dispatch runs timer firings on the host's event loop. The default
	// runs them on the timer goroutine.
	Dispatch func(func())

	// OnUpdate is called after the previewed tree changed.
	OnUpdate func(tree *engine.Node)

	// Enabled sets the initial state.
	Enabled bool
}

// Status is Idle or Pending(ScheduledAt).
type Status struct {
	Pending     bool
	ScheduledAt time.Time
}

func (s Status) String() string {
	if !s.Pending {
		return "Idle"
	}
	return fmt.Sprintf("Pending(%s)", s.ScheduledAt.Format(time.RFC3339Nano))
}

// Preview is the debounced tree scheduler.
type Preview struct {
	mu       sync.Mutex
	parser   Parser
	source   func() string
	interval time.Duration
	dispatch func(func())
	onUpdate func(*engine.Node)

	enabled bool
	closed  bool
	timer   *time.Timer
	gen     uint64
	status  Status
	value   *engine.Node

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a preview that parses source() with parser.
func New(parser Parser, source func() string, opts Options) *Preview {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultQuietInterval
	}
	dispatch := opts.Dispatch
	if dispatch == nil {
		dispatch = func(fn func()) { fn() }
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Preview{
		parser:   parser,
		source:   source,
		interval: interval,
		dispatch: dispatch,
		onUpdate: opts.OnUpdate,
		enabled:  opts.Enabled,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Notify reports a text change. While enabled it (re)schedules a recompute.
func (p *Preview) Notify() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.enabled || p.closed {
		return
	}
	p.stopLocked()

	p.gen++
	gen := p.gen
	p.status = Status{Pending: true, ScheduledAt: time.Now()}
	p.timer = time.AfterFunc(p.interval, func() {
		p.dispatch(func() { p.fire(gen) })
	})
}

func (p *Preview) stopLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.status = Status{}
}

// fire runs the recompute scheduled as generation gen.
func (p *Preview) fire(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || !p.enabled || p.closed {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	p.status = Status{}
	text := p.source()
	p.mu.Unlock()

	res := p.parser.Parse(p.ctx, text)

	p.mu.Lock()
	if gen != p.gen || p.closed {
		p.mu.Unlock()
		logging.PreviewDebug("dropping superseded recompute gen=%d", gen)
		return
	}
	if res.Kind != engine.KindParsedTreeJSON || res.Tree == nil {
		p.mu.Unlock()
		logging.PreviewDebug("keeping previous tree: %s", res.Kind)
		return
	}
	p.value = res.Tree
	p.mu.Unlock()

	logging.PreviewDebug("preview updated gen=%d nodes=%d", gen, res.Tree.Count())
	p.updated(res.Tree)
}

// FlushNow cancels any pending recompute, parses the current text
// immediately and applies the outcome unconditionally: an error clears the
// tree. The result is returned so the caller can surface errors.
func (p *Preview) FlushNow(ctx context.Context) engine.Result {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return engine.Errorf("preview closed")
	}
	p.stopLocked()
	p.gen++
	gen := p.gen
	text := p.source()
	p.mu.Unlock()

	res := p.parser.Parse(ctx, text)

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return res
	}
	var tree *engine.Node
	if res.Kind == engine.KindParsedTreeJSON {
		tree = res.Tree
	}
	p.value = tree
	p.mu.Unlock()

	p.updated(tree)
	return res
}

func (p *Preview) updated(tree *engine.Node) {
	if p.onUpdate != nil {
		p.onUpdate(tree)
	}
}

// SetEnabled turns scheduling on or off. Disabling cancels a pending
// recompute. Enabling does not recompute by itself; call FlushNow.
func (p *Preview) SetEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.enabled = enabled
	if !enabled {
		p.stopLocked()
		p.gen++
	}
}

// Enabled reports whether edits schedule recomputes.
func (p *Preview) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// State returns Idle or Pending.
func (p *Preview) State() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Value returns the previewed tree, or nil.
func (p *Preview) Value() *engine.Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// Close stops the timer and abandons any in-flight recompute.
func (p *Preview) Close() {
	p.mu.Lock()
	p.closed = true
	p.stopLocked()
	p.gen++
	p.mu.Unlock()
	p.cancel()
}
