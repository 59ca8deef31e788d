// Package codestore owns the editor buffer and the current selection.
//
// Every SetText writes the buffer through to persistent storage before it
// returns. Storage failures are logged and otherwise ignored: the in-memory
// buffer stays authoritative for the rest of the session.
package codestore

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"

	"gopad/internal/logging"
)

// Key is the storage key for the buffer text.
const Key = "code"

// KV is the persistence the store writes through to.
type KV interface {
	Get(key string) (string, bool, error)
	Put(key, value string) error
}

// Decoder turns a share token into text.
type Decoder func(ctx context.Context, token string) (string, error)

// Origin says where the initial text came from.
type Origin int

const (
	OriginDefault Origin = iota
	OriginPersisted
	OriginShared
)

func (o Origin) String() string {
	switch o {
	case OriginShared:
		return "shared"
	case OriginPersisted:
		return "persisted"
	default:
		return "default"
	}
}

// Sources are the load-time inputs, in precedence order.
type Sources struct {
	// ShareToken from the link the session was opened with, if any.
	ShareToken string

	// Default is the built-in sample used when nothing else applies.
	Default string
}

// Store is the single owner of the editor text and selection.
type Store struct {
	mu        sync.RWMutex
	text      string
	selection string
	hasSel    bool
	kv        KV

	lisMu     sync.Mutex
	listeners []func(string)
}

// New creates a store holding text without consulting storage.
func New(kv KV, text string) *Store {
	return &Store{kv: kv, text: text}
}

// Load resolves the initial text: a decodable share token wins and replaces
// the persisted text; otherwise the persisted text; otherwise the default.
// A token that fails to decode is discarded without a trace beyond the log.
func Load(ctx context.Context, kv KV, src Sources, decode Decoder) (*Store, Origin) {
	s := New(kv, src.Default)

	if src.ShareToken != "" && decode != nil {
		text, err := decode(ctx, src.ShareToken)
		if err == nil {
			s.SetText(text)
			logging.Session("buffer loaded from share link (%d bytes)", len(text))
			return s, OriginShared
		}
		logging.SessionDebug("discarding share token: %v", err)
	}

	if text, ok := readPersisted(kv); ok {
		s.mu.Lock()
		s.text = text
		s.mu.Unlock()
		return s, OriginPersisted
	}

	return s, OriginDefault
}

func readPersisted(kv KV) (string, bool) {
	if kv == nil {
		return "", false
	}
	raw, ok, err := kv.Get(Key)
	if err != nil {
		logging.Get(logging.CategoryStore).Warn("reading persisted buffer: %v", err)
		return "", false
	}
	if !ok {
		return "", false
	}
	var text string
	if err := json.Unmarshal([]byte(raw), &text); err != nil {
		logging.Get(logging.CategoryStore).Warn("persisted buffer is corrupt, using default: %v", err)
		return "", false
	}
	return text, true
}

// Text returns the current buffer.
func (s *Store) Text() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text
}

// SetText replaces the buffer and persists it.
func (s *Store) SetText(text string) {
	s.mu.Lock()
	s.text = text
	s.persistLocked(text)
	s.mu.Unlock()

	s.notify(text)
}

// persistLocked runs under mu so concurrent SetText calls reach storage in
// the same order they update the buffer.
func (s *Store) persistLocked(text string) {
	if s.kv == nil {
		return
	}
	data, err := json.Marshal(text)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("encoding buffer: %v", err)
		return
	}
	if err := s.kv.Put(Key, string(data)); err != nil {
		logging.Get(logging.CategoryStore).Warn("persisting buffer failed, keeping it in memory: %v", err)
	}
}

// Selection returns the selected text. ok is false when nothing is selected.
func (s *Store) Selection() (text string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selection, s.hasSel
}

// SetSelection records text trimmed of surrounding whitespace. Text that is
// empty after trimming clears the selection.
func (s *Store) SetSelection(text string) {
	trimmed := strings.TrimSpace(text)

	s.mu.Lock()
	defer s.mu.Unlock()
	if trimmed == "" {
		s.selection, s.hasSel = "", false
		return
	}
	s.selection, s.hasSel = trimmed, true
}

// ClearSelection drops the selection.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	s.selection, s.hasSel = "", false
	s.mu.Unlock()
}

// SelectLines selects lines start through end of the buffer, 1-based and
// inclusive. Out-of-range bounds are clamped. It reports whether anything
// ended up selected.
func (s *Store) SelectLines(start, end int) bool {
	lines := strings.Split(s.Text(), "\n")
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		s.ClearSelection()
		return false
	}
	s.SetSelection(strings.Join(lines[start-1:end], "\n"))
	_, ok := s.Selection()
	return ok
}

// OnChange registers fn to be called with the new text after every SetText.
func (s *Store) OnChange(fn func(text string)) {
	s.lisMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.lisMu.Unlock()
}

func (s *Store) notify(text string) {
	s.lisMu.Lock()
	fns := slices.Clone(s.listeners)
	s.lisMu.Unlock()
	for _, fn := range fns {
		fn(text)
	}
}
