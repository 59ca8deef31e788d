// Package ledger holds the session transcript: submissions, their results
// and interleaved captured output.
//
// Two counters run per ledger. Entry ids give the total render order; order
// numbers pair a submission with its single result. Neither counter is
// reset when the entries are cleared, so Out[n] labels never repeat within
// a session.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"gopad/internal/engine"
	"gopad/internal/logging"
)

var (
	// ErrUnknownOrder is returned when a result names an order no submission
	// was allocated.
	ErrUnknownOrder = errors.New("unknown order")

	// ErrDuplicateResult is returned when an order already has a result.
	ErrDuplicateResult = errors.New("order already answered")
)

// EntryKind classifies ledger entries.
type EntryKind int

const (
	EditorSubmission EntryKind = iota
	CommandLineSubmission
	ResultEcho
	StdOutLine
)

func (k EntryKind) String() string {
	switch k {
	case EditorSubmission:
		return "editor"
	case CommandLineSubmission:
		return "command"
	case ResultEcho:
		return "result"
	case StdOutLine:
		return "stdout"
	default:
		return fmt.Sprintf("EntryKind(%d)", int(k))
	}
}

// ParseEntryKind is the inverse of EntryKind.String.
func ParseEntryKind(s string) (EntryKind, bool) {
	for k := EditorSubmission; k <= StdOutLine; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// IsSubmission reports whether the kind is an input entry.
func (k EntryKind) IsSubmission() bool {
	return k == EditorSubmission || k == CommandLineSubmission
}

// Entry is one immutable transcript line.
type Entry struct {
	ID   int
	Kind EntryKind

	// Order pairs a submission with its result. Meaningful only when
	// HasOrder is set; stdout and notices are unordered.
	Order    int
	HasOrder bool

	// Text is the submitted source or the captured output line.
	Text string

	// Result is set on ResultEcho entries.
	Result engine.Result
}

// Ledger is an append-only transcript. Safe for concurrent use.
type Ledger struct {
	mu        sync.RWMutex
	entries   []Entry
	nextID    int
	nextOrder int

	// answered tracks which allocated orders already have a result.
	// Survives Reset so late results for cleared submissions are still
	// rejected as duplicates rather than unknown.
	answered map[int]bool

	// notifyMu is held from append through listener dispatch so listeners
	// see entries in id order.
	notifyMu sync.Mutex

	listenMu  sync.Mutex
	listeners map[int]func(Entry)
	nextLis   int
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		answered:  make(map[int]bool),
		listeners: make(map[int]func(Entry)),
	}
}

// AppendSubmission records text and returns its newly allocated order.
func (l *Ledger) AppendSubmission(text string, kind EntryKind) int {
	if !kind.IsSubmission() {
		kind = CommandLineSubmission
	}
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()

	l.mu.Lock()
	order := l.nextOrder
	l.nextOrder++
	l.answered[order] = false
	e := l.appendLocked(Entry{Kind: kind, Order: order, HasOrder: true, Text: text})
	l.mu.Unlock()

	logging.LedgerDebug("submission id=%d order=%d kind=%s", e.ID, order, kind)
	l.notify(e)
	return order
}

// AppendResult records the result for a previously allocated order.
func (l *Ledger) AppendResult(order int, result engine.Result) error {
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()

	l.mu.Lock()
	answered, ok := l.answered[order]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownOrder, order)
	}
	if answered {
		l.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrDuplicateResult, order)
	}
	l.answered[order] = true
	e := l.appendLocked(Entry{Kind: ResultEcho, Order: order, HasOrder: true, Result: result})
	l.mu.Unlock()

	logging.LedgerDebug("result id=%d order=%d kind=%s", e.ID, order, result.Kind)
	l.notify(e)
	return nil
}

// AppendStdout records one captured output line.
func (l *Ledger) AppendStdout(text string) {
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()

	l.mu.Lock()
	e := l.appendLocked(Entry{Kind: StdOutLine, Text: text})
	l.mu.Unlock()
	l.notify(e)
}

// AppendNotice records a result that answers no submission, such as a
// format failure the user asked to see.
func (l *Ledger) AppendNotice(result engine.Result) {
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()

	l.mu.Lock()
	e := l.appendLocked(Entry{Kind: ResultEcho, Result: result})
	l.mu.Unlock()
	l.notify(e)
}

func (l *Ledger) appendLocked(e Entry) Entry {
	e.ID = l.nextID
	l.nextID++
	l.entries = append(l.entries, e)
	return e
}

// Reset clears the entries. Counters keep increasing.
func (l *Ledger) Reset() {
	l.mu.Lock()
	n := len(l.entries)
	l.entries = nil
	l.mu.Unlock()
	logging.LedgerDebug("ledger reset, dropped %d entries", n)
}

// NextOrder returns the order the next submission will receive.
func (l *Ledger) NextOrder() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nextOrder
}

// Entries returns a copy of the entries in id order.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// SubmissionFor returns the submission entry carrying order.
func (l *Ledger) SubmissionFor(order int) (Entry, bool) {
	return l.find(func(e Entry) bool { return e.Kind.IsSubmission() && e.HasOrder && e.Order == order })
}

// ResultFor returns the result entry carrying order.
func (l *Ledger) ResultFor(order int) (Entry, bool) {
	return l.find(func(e Entry) bool { return e.Kind == ResultEcho && e.HasOrder && e.Order == order })
}

func (l *Ledger) find(match func(Entry) bool) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries {
		if match(e) {
			return e, true
		}
	}
	return Entry{}, false
}

// Listen registers fn to receive every appended entry. Listeners run on the
// appending goroutine after the entry is visible, one entry at a time in id
// order. A listener must not append to the same ledger. The returned function
// removes the listener.
func (l *Ledger) Listen(fn func(Entry)) (cancel func()) {
	l.listenMu.Lock()
	id := l.nextLis
	l.nextLis++
	l.listeners[id] = fn
	l.listenMu.Unlock()

	return func() {
		l.listenMu.Lock()
		delete(l.listeners, id)
		l.listenMu.Unlock()
	}
}

func (l *Ledger) notify(e Entry) {
	l.listenMu.Lock()
	fns := make([]func(Entry), 0, len(l.listeners))
	for _, fn := range l.listeners {
		fns = append(fns, fn)
	}
	l.listenMu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}
