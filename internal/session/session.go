// Package session coordinates one interactive coding session: the editor
// buffer, the transcript, the structure preview and the engine bridge.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gopad/internal/codestore"
	"gopad/internal/engine"
	"gopad/internal/examples"
	"gopad/internal/ledger"
	"gopad/internal/logging"
	"gopad/internal/preview"
	"gopad/internal/share"
	"gopad/internal/store"
)

// PreviewKey is the storage key for the preview visibility flag.
const PreviewKey = "previewVisible"

var (
	// ErrUnknownExample is returned by LoadExample for unknown names.
	ErrUnknownExample = errors.New("unknown example")

	// ErrNoSelection is returned when a selection run has nothing to run.
	ErrNoSelection = errors.New("nothing selected")
)

// Archive receives every transcript entry. *store.LocalStore satisfies it.
type Archive interface {
	AppendEntry(e store.ArchivedEntry) error
}

// Options configures a Session.
type Options struct {
	// Bridge to the engine. Required.
	Bridge *engine.Bridge

	// Store persists the buffer and preview flag. Nil keeps both in memory.
	Store codestore.KV

	// Archive, when set, receives every ledger entry.
	Archive Archive

	// Codec for share links. Nil uses defaults.
	Codec *share.Codec

	// ShareBaseURL prefixes generated share links.
	ShareBaseURL string

	// ShareToken the session was opened with, if any.
	ShareToken string

	// Default buffer text. Empty uses examples.Default().
	Default string

	// QuietInterval for the structure preview.
	QuietInterval time.Duration

	// Dispatch and OnPreview are passed through to the preview.
	Dispatch  func(func())
	OnPreview func(tree *engine.Node)

	// ID overrides the generated session id.
	ID string
}

// Session is the coordinator. Methods are safe for concurrent use; runs are
// serialized so results land in submission order.
type Session struct {
	id      string
	bridge  *engine.Bridge
	ledger  *ledger.Ledger
	code    *codestore.Store
	preview *preview.Preview
	kv      codestore.KV
	codec   *share.Codec
	origin  codestore.Origin
	baseURL string

	runMu sync.Mutex

	visMu   sync.Mutex
	visible bool

	stopArchive func()
	ctx         context.Context
	cancel      context.CancelFunc
}

// New builds a session and resolves its initial buffer.
func New(ctx context.Context, opts Options) (*Session, error) {
	if opts.Bridge == nil {
		return nil, fmt.Errorf("session: bridge is required")
	}
	kv := opts.Store
	if kv == nil {
		kv = store.NewMemoryKV()
	}
	codec := opts.Codec
	if codec == nil {
		codec = &share.Codec{}
	}
	def := opts.Default
	if def == "" {
		def = examples.Default()
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:      id,
		bridge:  opts.Bridge,
		ledger:  ledger.New(),
		kv:      kv,
		codec:   codec,
		baseURL: opts.ShareBaseURL,
		ctx:     sctx,
		cancel:  cancel,
	}

	loadCtx, stop := s.bound(ctx)
	s.code, s.origin = codestore.Load(loadCtx, kv, codestore.Sources{
		ShareToken: share.TokenFromLink(opts.ShareToken),
		Default:    def,
	}, codec.Decode)
	stop()

	s.visible = readBool(kv, PreviewKey)
	s.preview = preview.New(s.bridge, s.code.Text, preview.Options{
		Interval: opts.QuietInterval,
		Dispatch: opts.Dispatch,
		OnUpdate: opts.OnPreview,
		Enabled:  s.visible,
	})
	s.code.OnChange(func(string) { s.preview.Notify() })

	s.bridge.SetStdout(s.ledger.AppendStdout)

	if opts.Archive != nil {
		s.stopArchive = s.ledger.Listen(func(e ledger.Entry) { s.archive(opts.Archive, e) })
	}

	logging.Session("session %s started, buffer from %s", id, s.origin)
	return s, nil
}

// bound returns a context cancelled when either ctx or the session ends.
func (s *Session) bound(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func readBool(kv codestore.KV, key string) bool {
	raw, ok, err := kv.Get(key)
	if err != nil || !ok {
		return false
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		logging.SessionDebug("corrupt %s value %q, using false", key, raw)
		return false
	}
	return v
}

func (s *Session) archive(a Archive, e ledger.Entry) {
	rec := store.ArchivedEntry{
		SessionID: s.id,
		EntryID:   e.ID,
		Kind:      e.Kind.String(),
		Order:     e.Order,
		HasOrder:  e.HasOrder,
		Text:      e.Text,
	}
	if e.Kind == ledger.ResultEcho {
		rec.Text = e.Result.Display()
		rec.ResultKind = e.Result.Kind.String()
	}
	if err := a.AppendEntry(rec); err != nil {
		logging.Get(logging.CategorySession).Warn("archiving entry %d: %v", e.ID, err)
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Origin reports where the initial buffer came from.
func (s *Session) Origin() codestore.Origin { return s.origin }

// Ledger returns the transcript.
func (s *Session) Ledger() *ledger.Ledger { return s.ledger }

// Code returns the editor buffer.
func (s *Session) Code() *codestore.Store { return s.code }

// Bridge returns the engine bridge.
func (s *Session) Bridge() *engine.Bridge { return s.bridge }

// Run submits text: the submission is recorded, executed, and its result
// recorded under the same order. Output lines produced meanwhile land
// between the two.
func (s *Session) Run(ctx context.Context, text string, kind ledger.EntryKind) engine.Result {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	ctx, stop := s.bound(ctx)
	defer stop()

	order := s.ledger.AppendSubmission(text, kind)
	res := s.bridge.Execute(ctx, text)
	if err := s.ledger.AppendResult(order, res); err != nil {
		logging.Get(logging.CategorySession).Error("recording result for %d: %v", order, err)
	}
	logging.SessionDebug("run order=%d kind=%s -> %s", order, kind, res.Kind)
	return res
}

// RunEditor runs the whole buffer.
func (s *Session) RunEditor(ctx context.Context) engine.Result {
	return s.Run(ctx, s.code.Text(), ledger.EditorSubmission)
}

// RunSelection runs the current selection. It counts as an editor
// submission since the text comes from the buffer.
func (s *Session) RunSelection(ctx context.Context) (engine.Result, error) {
	sel, ok := s.code.Selection()
	if !ok {
		return engine.Empty(), ErrNoSelection
	}
	return s.Run(ctx, sel, ledger.EditorSubmission), nil
}

// RunCommand runs one command-line input.
func (s *Session) RunCommand(ctx context.Context, line string) engine.Result {
	return s.Run(ctx, line, ledger.CommandLineSubmission)
}

// Format replaces the buffer with its formatted form. Failures are
// recorded in the transcript.
func (s *Session) Format(ctx context.Context) engine.Result {
	ctx, stop := s.bound(ctx)
	defer stop()

	res := s.bridge.Format(ctx, s.code.Text())
	switch {
	case res.Kind == engine.KindFormattedText:
		s.code.SetText(res.Text)
	case res.IsError():
		s.ledger.AppendNotice(res)
	}
	return res
}

// PreviewVisible reports whether the tree pane is shown.
func (s *Session) PreviewVisible() bool {
	s.visMu.Lock()
	defer s.visMu.Unlock()
	return s.visible
}

// Tree returns the previewed structure tree.
func (s *Session) Tree() *engine.Node { return s.preview.Value() }

// PreviewState returns the preview scheduler state.
func (s *Session) PreviewState() preview.Status { return s.preview.State() }

// ToggleTree flips the tree pane. Showing it computes the tree at once;
// a failure then is recorded in the transcript.
func (s *Session) ToggleTree(ctx context.Context) (bool, engine.Result) {
	s.visMu.Lock()
	s.visible = !s.visible
	visible := s.visible
	s.visMu.Unlock()

	if err := s.kv.Put(PreviewKey, strconv.FormatBool(visible)); err != nil {
		logging.Get(logging.CategoryStore).Warn("persisting preview flag: %v", err)
	}
	s.preview.SetEnabled(visible)
	if !visible {
		return false, engine.Empty()
	}

	ctx, stop := s.bound(ctx)
	defer stop()
	res := s.preview.FlushNow(ctx)
	if res.IsError() {
		s.ledger.AppendNotice(res)
	}
	return true, res
}

// Edit replaces the buffer.
func (s *Session) Edit(text string) {
	s.code.SetText(text)
}

// ResetEngine clears engine bindings. The transcript is untouched.
func (s *Session) ResetEngine() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	s.bridge.Reset()
}

// ClearHistory empties the transcript. Order numbers keep increasing.
func (s *Session) ClearHistory() {
	s.ledger.Reset()
}

// ShareLink returns a link carrying the current buffer.
func (s *Session) ShareLink(ctx context.Context) (string, error) {
	ctx, stop := s.bound(ctx)
	defer stop()

	token, err := s.codec.Encode(ctx, s.code.Text())
	if err != nil {
		return "", fmt.Errorf("encode share token: %w", err)
	}
	if s.baseURL == "" {
		return "#" + token, nil
	}
	return share.Link(s.baseURL, token)
}

// LoadShared replaces the buffer with the text of a link or token. On
// failure the buffer is unchanged.
func (s *Session) LoadShared(ctx context.Context, link string) error {
	ctx, stop := s.bound(ctx)
	defer stop()

	text, err := s.codec.Decode(ctx, share.TokenFromLink(link))
	if err != nil {
		return err
	}
	s.code.SetText(text)
	return nil
}

// LoadExample replaces the buffer with a built-in sample.
func (s *Session) LoadExample(name string) error {
	code, ok := examples.Get(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownExample, name)
	}
	s.code.SetText(code)
	return nil
}

// Close abandons in-flight share and preview work and detaches from the
// bridge.
func (s *Session) Close() {
	s.cancel()
	s.preview.Close()
	s.bridge.SetStdout(nil)
	if s.stopArchive != nil {
		s.stopArchive()
	}
	logging.Session("session %s closed", s.id)
}
