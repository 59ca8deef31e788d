package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"gopad/internal/logging"
)

// ErrNotReady is returned by WaitReady when the engine failed to load.
var ErrNotReady = errors.New("engine not ready")

// Engine is the external interpreter behind the bridge.
//
// Execute may mutate the engine's persistent bindings and is never called
// concurrently with itself or Reset. Format and Parse must not touch the
// bindings and may run concurrently with Execute.
type Engine interface {
	// Execute evaluates text. Diagnostic output is written to stdout while
	// the call runs.
	Execute(ctx context.Context, text string, stdout io.Writer) Result

	// Format returns KindFormattedText or KindParseError.
	Format(ctx context.Context, text string) Result

	// Parse returns KindParsedTreeJSON with the JSON wire form in Text, or
	// KindParseError.
	Parse(ctx context.Context, text string) Result

	// Reset clears all bindings.
	Reset()
}

// Loader produces an engine. It runs once, off the caller's goroutine.
type Loader func(ctx context.Context) (Engine, error)

// Bridge gates engine calls on readiness and captures execution output.
type Bridge struct {
	execMu sync.Mutex

	engine  Engine
	ready   chan struct{}
	once    sync.Once
	started atomic.Bool

	errMu   sync.RWMutex
	loadErr error

	sinkMu sync.RWMutex
	sink   func(line string)

	timeout time.Duration
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithStdout sets the function receiving captured output lines.
func WithStdout(fn func(line string)) BridgeOption {
	return func(b *Bridge) { b.sink = fn }
}

// WithTimeout bounds each call. Zero means no bound beyond the caller's context.
func WithTimeout(d time.Duration) BridgeOption {
	return func(b *Bridge) { b.timeout = d }
}

// NewBridge creates a bridge in the not-ready state.
func NewBridge(opts ...BridgeOption) *Bridge {
	b := &Bridge{ready: make(chan struct{})}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetStdout replaces the output sink.
func (b *Bridge) SetStdout(fn func(line string)) {
	b.sinkMu.Lock()
	b.sink = fn
	b.sinkMu.Unlock()
}

// Start loads the engine in the background. Only the first call has any
// effect; Ready is reached at most once.
func (b *Bridge) Start(ctx context.Context, load Loader) {
	if !b.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		timer := logging.StartTimer(logging.CategoryEngine, "engine load")
		eng, err := load(ctx)
		timer.Stop()
		if err == nil && eng == nil {
			err = fmt.Errorf("loader returned no engine")
		}
		if err != nil {
			b.errMu.Lock()
			b.loadErr = err
			b.errMu.Unlock()
			logging.Get(logging.CategoryEngine).Error("engine load failed: %v", err)
			return
		}
		b.markReady(eng)
	}()
}

// Attach makes eng the bridge's engine synchronously. Used when the engine
// is already constructed.
func (b *Bridge) Attach(eng Engine) {
	if !b.started.CompareAndSwap(false, true) {
		return
	}
	b.markReady(eng)
}

func (b *Bridge) markReady(eng Engine) {
	b.once.Do(func() {
		b.engine = eng
		close(b.ready)
		logging.Engine("engine ready")
	})
}

// Ready is closed once the engine is usable.
func (b *Bridge) Ready() <-chan struct{} { return b.ready }

// IsReady reports whether the engine is usable.
func (b *Bridge) IsReady() bool {
	select {
	case <-b.ready:
		return true
	default:
		return false
	}
}

// Err returns the load failure, if any.
func (b *Bridge) Err() error {
	b.errMu.RLock()
	defer b.errMu.RUnlock()
	return b.loadErr
}

// WaitReady blocks until Ready, a load failure, or ctx is done.
func (b *Bridge) WaitReady(ctx context.Context) error {
	poll := time.NewTicker(10 * time.Millisecond)
	defer poll.Stop()
	for {
		select {
		case <-b.ready:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-poll.C:
			if err := b.Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrNotReady, err)
			}
		}
	}
}

func (b *Bridge) readyEngine() (Engine, bool) {
	if !b.IsReady() {
		return nil, false
	}
	return b.engine, true
}

func (b *Bridge) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout > 0 {
		return context.WithTimeout(ctx, b.timeout)
	}
	return context.WithCancel(ctx)
}

func (b *Bridge) emit(line string) {
	b.sinkMu.RLock()
	sink := b.sink
	b.sinkMu.RUnlock()
	if sink != nil {
		sink(line)
	}
}

// guard turns an engine panic into an error result.
func guard(op string, fn func() Result) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryEngine).Error("%s panicked: %v", op, r)
			res = Errorf("%v", r)
		}
	}()
	return fn()
}

// Execute runs text on the engine. Before Ready it returns
// KindEngineUnavailable without touching the engine.
func (b *Bridge) Execute(ctx context.Context, text string) Result {
	eng, ok := b.readyEngine()
	if !ok {
		logging.EngineDebug("execute before ready")
		return Unavailable()
	}

	b.execMu.Lock()
	defer b.execMu.Unlock()

	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	timer := logging.StartTimer(logging.CategoryEngine, "execute")
	defer timer.Stop()

	out := newLineWriter(b.emit)
	res := guard("execute", func() Result { return eng.Execute(ctx, text, out) })
	out.Close()
	return res
}

// Format asks the engine to format text. Before Ready it returns
// KindEngineUnavailable.
func (b *Bridge) Format(ctx context.Context, text string) Result {
	eng, ok := b.readyEngine()
	if !ok {
		return Unavailable()
	}
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	return guard("format", func() Result { return eng.Format(ctx, text) })
}

// Parse asks the engine for the structure tree of text and decodes the wire
// form. A malformed wire form yields KindParsedTreeError, distinct from the
// engine's own KindParseError.
func (b *Bridge) Parse(ctx context.Context, text string) Result {
	eng, ok := b.readyEngine()
	if !ok {
		return Unavailable()
	}
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	res := guard("parse", func() Result { return eng.Parse(ctx, text) })
	switch res.Kind {
	case KindParsedTreeJSON:
		var root Node
		if err := json.Unmarshal([]byte(res.Text), &root); err != nil {
			return Result{Kind: KindParsedTreeError, Text: fmt.Sprintf("malformed tree: %v", err)}
		}
		return Result{Kind: KindParsedTreeJSON, Text: res.Text, Tree: &root}
	case KindParseError, KindParsedTreeError, KindError:
		return res
	default:
		return Result{Kind: KindParsedTreeError, Text: fmt.Sprintf("unexpected parse result %s", res.Kind)}
	}
}

// Reset clears engine bindings. It is a no-op before Ready.
func (b *Bridge) Reset() {
	eng, ok := b.readyEngine()
	if !ok {
		logging.EngineDebug("reset before ready ignored")
		return
	}
	b.execMu.Lock()
	defer b.execMu.Unlock()
	guard("reset", func() Result {
		eng.Reset()
		return Empty()
	})
	logging.Engine("engine bindings reset")
}
