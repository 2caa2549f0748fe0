// Package history keeps the messages typed in the composer so they can be
// recalled. Entries are persisted in a sqlite database.
package history

import (
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/malonaz/madlen/internal/file"
)

const maxHistorySize = 1000

// History of composer entries.
type History struct {
	db *sql.DB

	mu      sync.Mutex
	entries []string
	index   int    // Current position in history (-1 means new input)
	current string // Stores current input when navigating history
}

// New opens the history stored at path, creating it if needed.
func New(path string) (*History, error) {
	if err := file.CreateParentDirectory(path); err != nil {
		return nil, errors.Wrap(err, "creating history directory")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			content TEXT NOT NULL,
			creation_timestamp INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating entries table")
	}

	h := &History{db: db, index: -1}
	if err := h.load(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "loading history")
	}
	return h, nil
}

// Close the underlying database.
func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) load() error {
	rows, err := h.db.Query(`
		SELECT content FROM (
			SELECT id, content FROM entries ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC
	`, maxHistorySize)
	if err != nil {
		return errors.Wrap(err, "querying entries")
	}
	defer rows.Close()

	h.mu.Lock()
	defer h.mu.Unlock()
	for rows.Next() {
		var entry string
		if err := rows.Scan(&entry); err != nil {
			return errors.Wrap(err, "scanning entry")
		}
		h.entries = append(h.entries, entry)
	}
	return errors.Wrap(rows.Err(), "iterating entries")
}

// Add an entry to the history. Empty entries and repeats of the last entry are ignored.
func (h *History) Add(entry string) error {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.index = -1
	h.current = ""
	if len(h.entries) > 0 && h.entries[len(h.entries)-1] == entry {
		return nil
	}

	result, err := h.db.Exec(`INSERT INTO entries (content, creation_timestamp) VALUES (?, ?)`, entry, time.Now().UnixMicro())
	if err != nil {
		return errors.Wrap(err, "inserting entry")
	}
	h.entries = append(h.entries, entry)
	if len(h.entries) <= maxHistorySize {
		return nil
	}
	h.entries = h.entries[len(h.entries)-maxHistorySize:]
	id, err := result.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "getting entry id")
	}
	if _, err := h.db.Exec(`DELETE FROM entries WHERE id <= ?`, id-maxHistorySize); err != nil {
		return errors.Wrap(err, "trimming entries")
	}
	return nil
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Previous returns the previous entry in history.
// currentInput is the current composer content, restored when navigating back past the newest entry.
func (h *History) Previous(currentInput string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) == 0 {
		return "", false
	}

	if h.index == -1 {
		h.current = currentInput
		h.index = len(h.entries) - 1
	} else if h.index > 0 {
		h.index--
	} else {
		// Already at oldest entry
		return h.entries[0], false
	}

	return h.entries[h.index], true
}

// Next returns the next entry in history (toward present).
func (h *History) Next() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.index == -1 {
		return "", false
	}

	h.index++
	if h.index >= len(h.entries) {
		h.index = -1
		return h.current, true
	}
	return h.entries[h.index], true
}

// Reset resets the navigation index (call when input is modified).
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.index = -1
	h.current = ""
}
