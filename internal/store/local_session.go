package store

import (
	"time"

	"gopad/internal/logging"
)

// =============================================================================
// SESSION ARCHIVE (transcript entries per session)
// =============================================================================

// ArchivedEntry is one transcript entry as stored.
type ArchivedEntry struct {
	SessionID  string
	EntryID    int
	Kind       string
	Order      int
	HasOrder   bool
	Text       string
	ResultKind string
	CreatedAt  time.Time
}

// SessionSummary describes one archived session.
type SessionSummary struct {
	ID      string
	Entries int
	FirstAt time.Time
	LastAt  time.Time
}

// AppendEntry archives a transcript entry. Uses INSERT OR IGNORE so
// re-archiving the same entry id is a no-op.
func (s *LocalStore) AppendEntry(e ArchivedEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO session_history
		 (session_id, entry_id, kind, ord, has_order, text, result_kind, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.EntryID, e.Kind, e.Order, e.HasOrder, e.Text, e.ResultKind, e.CreatedAt,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to archive entry: session=%s entry=%d: %v", e.SessionID, e.EntryID, err)
		return err
	}
	return nil
}

// SessionEntries returns up to limit archived entries of a session in
// entry order.
func (s *LocalStore) SessionEntries(sessionID string, limit int) ([]ArchivedEntry, error) {
	timer := logging.StartTimer(logging.CategoryStore, "SessionEntries")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 1000
	}

	rows, err := s.db.Query(
		`SELECT entry_id, kind, ord, has_order, text, result_kind, created_at
		 FROM session_history
		 WHERE session_id = ?
		 ORDER BY entry_id ASC
		 LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to query session %s: %v", sessionID, err)
		return nil, err
	}
	defer rows.Close()

	var entries []ArchivedEntry
	for rows.Next() {
		e := ArchivedEntry{SessionID: sessionID}
		var text, resultKind *string
		if err := rows.Scan(&e.EntryID, &e.Kind, &e.Order, &e.HasOrder, &text, &resultKind, &e.CreatedAt); err != nil {
			logging.StoreDebug("skipping unreadable archive row: %v", err)
			continue
		}
		if text != nil {
			e.Text = *text
		}
		if resultKind != nil {
			e.ResultKind = *resultKind
		}
		entries = append(entries, e)
	}

	logging.StoreDebug("Retrieved %d archived entries for session %s", len(entries), sessionID)
	return entries, rows.Err()
}

// ListSessions returns the most recently active sessions first.
func (s *LocalStore) ListSessions(limit int) ([]SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT session_id, COUNT(*), MIN(created_at), MAX(created_at)
		 FROM session_history
		 GROUP BY session_id
		 ORDER BY MAX(id) DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to list sessions: %v", err)
		return nil, err
	}
	defer rows.Close()

	var sessions []SessionSummary
	for rows.Next() {
		var sum SessionSummary
		var first, last string
		if err := rows.Scan(&sum.ID, &sum.Entries, &first, &last); err != nil {
			continue
		}
		sum.FirstAt = parseSQLiteTime(first)
		sum.LastAt = parseSQLiteTime(last)
		sessions = append(sessions, sum)
	}
	return sessions, rows.Err()
}

// Aggregates come back as text rather than DATETIME.
func parseSQLiteTime(s string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999 -0700 MST",
		"2006-01-02 15:04:05",
		time.RFC3339Nano,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
