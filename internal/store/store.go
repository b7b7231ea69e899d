// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store holds the ordered, in-memory item collection and persists
// it (plus a small preferences table) to sqlite so a bibliography survives
// reload.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/biblio-engine/pkg/types"
)

const dbFile = "biblio.db"

// Preference keys used by the engine.
const (
	PrefTitle           = "title"
	PrefStyle           = "style"
	PrefInstalledStyles = "installed_styles"
	PrefUndo            = "undo"
)

// OpenDB opens (or creates) the sqlite database under dataDir. The same
// handle backs the item store and the style cache.
func OpenDB(dataDir string) (*sql.DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// Store is the ordered item collection. Order in the store defines
// bibliography order unless the active style sorts. All mutations persist
// synchronously before returning.
type Store struct {
	db    *sql.DB
	items []*types.Item
	index map[string]int // key -> position in items
}

// New creates a Store over db, creating the schema if needed.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db, index: make(map[string]int)}
	if err := s.createSchema(); err != nil {
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS items (
			key TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			data TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_items_position ON items(position)`,
		`CREATE TABLE IF NOT EXISTS prefs (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Load reads the persisted item list into memory, replacing the current
// contents.
func (s *Store) Load() error {
	rows, err := s.db.Query(`SELECT data FROM items ORDER BY position`)
	if err != nil {
		return fmt.Errorf("loading items: %w", err)
	}
	defer rows.Close()

	s.items = nil
	s.index = make(map[string]int)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return fmt.Errorf("scanning item: %w", err)
		}
		var item types.Item
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			return fmt.Errorf("parsing item: %w", err)
		}
		s.index[item.Key] = len(s.items)
		s.items = append(s.items, &item)
	}
	return rows.Err()
}

// Len returns the number of items.
func (s *Store) Len() int { return len(s.items) }

// Items returns the items in order. The slice is a copy; the items are not.
func (s *Store) Items() []*types.Item {
	return append([]*types.Item(nil), s.items...)
}

// Keys returns the item keys in store order.
func (s *Store) Keys() []string {
	keys := make([]string, len(s.items))
	for i, it := range s.items {
		keys[i] = it.Key
	}
	return keys
}

// Get returns the item with the given key.
func (s *Store) Get(key string) (*types.Item, bool) {
	pos, ok := s.index[key]
	if !ok {
		return nil, false
	}
	return s.items[pos], true
}

// Add appends an item. A missing key is assigned; a duplicate key is an
// error. Version starts at 1.
func (s *Store) Add(item *types.Item) error {
	if item.Key == "" {
		item.Key = uuid.New().String()
	}
	if _, exists := s.index[item.Key]; exists {
		return fmt.Errorf("duplicate item key %q", item.Key)
	}
	if item.Version == 0 {
		item.Version = 1
	}

	if err := s.persistInsert(item, len(s.items)); err != nil {
		return err
	}
	s.index[item.Key] = len(s.items)
	s.items = append(s.items, item)
	return nil
}

// InsertAt inserts an item at index, used by delete-undo. An index beyond
// the end (or negative) appends.
func (s *Store) InsertAt(item *types.Item, index int) error {
	if item.Key == "" {
		return fmt.Errorf("item has no key")
	}
	if _, exists := s.index[item.Key]; exists {
		return fmt.Errorf("duplicate item key %q", item.Key)
	}
	if index < 0 || index > len(s.items) {
		index = len(s.items)
	}

	s.items = append(s.items, nil)
	copy(s.items[index+1:], s.items[index:])
	s.items[index] = item
	s.reindex()

	return s.persistAll()
}

// Update replaces the stored item with the same key, bumping its version.
func (s *Store) Update(item *types.Item) error {
	pos, ok := s.index[item.Key]
	if !ok {
		return fmt.Errorf("unknown item key %q", item.Key)
	}
	item.Version = s.items[pos].Version + 1
	s.items[pos] = item

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshaling item: %w", err)
	}
	_, err = s.db.Exec(`UPDATE items SET data = ? WHERE key = ?`, string(data), item.Key)
	if err != nil {
		return fmt.Errorf("persisting item %s: %w", item.Key, err)
	}
	return nil
}

// Delete removes the item with the given key and returns it along with its
// former index. wasLast reports that the item was the final entry, in which
// case undo should append rather than reinsert by index.
func (s *Store) Delete(key string) (item *types.Item, index int, wasLast bool, err error) {
	pos, ok := s.index[key]
	if !ok {
		return nil, 0, false, fmt.Errorf("unknown item key %q", key)
	}

	item = s.items[pos]
	wasLast = pos == len(s.items)-1
	s.items = append(s.items[:pos], s.items[pos+1:]...)
	s.reindex()

	if err := s.persistAll(); err != nil {
		return nil, 0, false, err
	}
	return item, pos, wasLast, nil
}

// Reorder removes the item with sourceKey and reinserts it at targetKey's
// position, before or after per placeBefore. The splice is keyed by stable
// identity, never by index.
func (s *Store) Reorder(sourceKey, targetKey string, placeBefore bool) error {
	if sourceKey == targetKey {
		return nil
	}
	srcPos, ok := s.index[sourceKey]
	if !ok {
		return fmt.Errorf("unknown item key %q", sourceKey)
	}
	if _, ok := s.index[targetKey]; !ok {
		return fmt.Errorf("unknown item key %q", targetKey)
	}

	item := s.items[srcPos]
	rest := append(s.items[:srcPos:srcPos], s.items[srcPos+1:]...)

	// Locate the target after the removal.
	tgtPos := -1
	for i, it := range rest {
		if it.Key == targetKey {
			tgtPos = i
			break
		}
	}
	insertAt := tgtPos
	if !placeBefore {
		insertAt = tgtPos + 1
	}

	items := make([]*types.Item, 0, len(rest)+1)
	items = append(items, rest[:insertAt]...)
	items = append(items, item)
	items = append(items, rest[insertAt:]...)
	s.items = items
	s.reindex()

	return s.persistAll()
}

// Replace swaps the whole collection for a new ordered set.
func (s *Store) Replace(items []*types.Item) error {
	for _, item := range items {
		if item.Key == "" {
			item.Key = uuid.New().String()
		}
		if item.Version == 0 {
			item.Version = 1
		}
	}
	s.items = append([]*types.Item(nil), items...)
	s.reindex()
	return s.persistAll()
}

// Clear removes every item and preference ("delete all").
func (s *Store) Clear() error {
	s.items = nil
	s.index = make(map[string]int)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM items`); err != nil {
		return fmt.Errorf("clearing items: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM prefs`); err != nil {
		return fmt.Errorf("clearing prefs: %w", err)
	}
	return tx.Commit()
}

// Pref returns the stored preference value, or "" when unset.
func (s *Store) Pref(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM prefs WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading pref %s: %w", key, err)
	}
	return value, nil
}

// SetPref stores a preference value.
func (s *Store) SetPref(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO prefs (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("writing pref %s: %w", key, err)
	}
	return nil
}

func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.items))
	for i, it := range s.items {
		s.index[it.Key] = i
	}
}

func (s *Store) persistInsert(item *types.Item, position int) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshaling item: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO items (key, position, data) VALUES (?, ?, ?)`,
		item.Key, position, string(data))
	if err != nil {
		return fmt.Errorf("persisting item %s: %w", item.Key, err)
	}
	return nil
}

// persistAll rewrites the items table to match memory, in one transaction.
// Splice-heavy operations (delete, reorder, replace) renumber every
// position, so a wholesale rewrite is simpler than diffing.
func (s *Store) persistAll() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM items`); err != nil {
		return fmt.Errorf("clearing items: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO items (key, position, data) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, item := range s.items {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshaling item %s: %w", item.Key, err)
		}
		if _, err := stmt.Exec(item.Key, i, string(data)); err != nil {
			return fmt.Errorf("persisting item %s: %w", item.Key, err)
		}
	}
	return tx.Commit()
}
