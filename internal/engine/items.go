// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"encoding/json"
	"fmt"

	"github.com/pdiddy/biblio-engine/internal/store"
	"github.com/pdiddy/biblio-engine/pkg/types"
)

// AddItem validates and appends one item, refreshing the projection before
// returning. Schema fixes are applied in place and logged, never fatal.
func (e *Engine) AddItem(item *types.Item) error {
	if err := e.applyPatches(); err != nil {
		return err
	}
	if err := e.commit(item); err != nil {
		return err
	}
	return e.settle()
}

// AddTranslated commits a batch of translated items in order.
func (e *Engine) AddTranslated(items []*types.Item) error {
	if err := e.applyPatches(); err != nil {
		return err
	}
	for _, item := range items {
		if err := e.commit(item); err != nil {
			return err
		}
	}
	return e.settle()
}

// commit validates, stores, and mirrors one item into the citation engine.
func (e *Engine) commit(item *types.Item) error {
	if e.schema.Loaded() {
		for _, fe := range e.schema.Validate(item) {
			e.log.Debug().Str("field", fe.Field).Str("reason", fe.Reason).Msg("schema fix")
		}
	}
	if err := e.store.Add(item); err != nil {
		return fmt.Errorf("adding item: %w", err)
	}
	if err := e.syncInsert(item, true); err != nil {
		return err
	}
	e.needsRefresh = true
	return nil
}

// PatchItem buffers field edits for an item. Patches accumulate until
// FlushPatches or the next settling operation; rapid typing never triggers
// per-keystroke renders.
func (e *Engine) PatchItem(key string, fields map[string]string) error {
	if _, ok := e.store.Get(key); !ok {
		return fmt.Errorf("unknown item key %q", key)
	}
	if e.patches[key] == nil {
		e.patches[key] = make(map[string]string)
		e.patchOrder = append(e.patchOrder, key)
	}
	for name, value := range fields {
		e.patches[key][name] = value
	}
	return nil
}

// FlushPatches applies buffered edits and refreshes the projection.
func (e *Engine) FlushPatches() error {
	return e.settle()
}

// applyPatches drains the debounce buffer into the store and the citation
// engine. An itemType patch remaps base fields before the rest apply.
func (e *Engine) applyPatches() error {
	if len(e.patchOrder) == 0 {
		return nil
	}
	for _, key := range e.patchOrder {
		fields := e.patches[key]
		current, ok := e.store.Get(key)
		if !ok {
			// Deleted while edits were buffered; drop them.
			continue
		}
		item := current.Clone()

		if newType, ok := fields["itemType"]; ok && newType != item.ItemType {
			e.schema.RemapBaseFields(item, newType)
		}
		for name, value := range fields {
			if name == "itemType" {
				continue
			}
			item.SetField(name, value)
		}
		if e.schema.Loaded() {
			for _, fe := range e.schema.Validate(item) {
				e.log.Debug().Str("field", fe.Field).Str("reason", fe.Reason).Msg("schema fix")
			}
		}

		if err := e.store.Update(item); err != nil {
			return fmt.Errorf("applying edit: %w", err)
		}
		if err := e.syncInsert(item, false); err != nil {
			return err
		}
		e.needsRefresh = true
	}
	e.patches = make(map[string]map[string]string)
	e.patchOrder = nil
	return nil
}

// DeleteItem removes an item, capturing it in the one-slot undo buffer. A
// new delete supersedes any earlier buffered one. The buffer persists as a
// preference, so the undo is available to a later session.
func (e *Engine) DeleteItem(key string) error {
	if err := e.applyPatches(); err != nil {
		return err
	}
	item, index, wasLast, err := e.store.Delete(key)
	if err != nil {
		return err
	}
	e.undo = &deletedItem{Item: item, Index: index, WasLast: wasLast}
	if err := e.saveUndo(); err != nil {
		return err
	}

	if err := e.syncRemove(key); err != nil {
		return err
	}
	e.needsRefresh = true
	return e.settle()
}

// UndoDelete reinserts the last deleted item at its original index, or
// appends when it was last. The buffer is cleared either way.
func (e *Engine) UndoDelete() error {
	if e.undo == nil {
		return ErrNoUndo
	}
	buf := e.undo
	if err := e.clearUndo(); err != nil {
		return err
	}

	index := buf.Index
	if buf.WasLast {
		index = -1
	}
	if err := e.store.InsertAt(buf.Item, index); err != nil {
		return fmt.Errorf("restoring item: %w", err)
	}

	// A positional insert changes engine-side order, which is not
	// independently patchable; rebuild.
	e.needsRebuild = true
	return e.settle()
}

// saveUndo persists the undo buffer so it survives session restarts.
func (e *Engine) saveUndo() error {
	data, err := json.Marshal(e.undo)
	if err != nil {
		return fmt.Errorf("encoding undo buffer: %w", err)
	}
	return e.store.SetPref(store.PrefUndo, string(data))
}

// clearUndo drops the in-memory buffer and its persisted copy.
func (e *Engine) clearUndo() error {
	e.undo = nil
	return e.store.SetPref(store.PrefUndo, "")
}

// loadUndo restores a persisted undo buffer at startup. An unreadable
// buffer is dropped with a warning; undo state never blocks Start.
func (e *Engine) loadUndo() {
	raw, err := e.store.Pref(store.PrefUndo)
	if err != nil {
		e.log.Warn().Err(err).Msg("undo buffer unavailable")
		return
	}
	if raw == "" {
		return
	}
	var buf deletedItem
	if err := json.Unmarshal([]byte(raw), &buf); err != nil {
		e.log.Warn().Err(err).Msg("dropping unreadable undo buffer")
		return
	}
	e.undo = &buf
}

// Reorder moves the item with sourceKey before or after targetKey. Order is
// engine-side state that cannot be patched incrementally, so reorder always
// rebuilds.
func (e *Engine) Reorder(sourceKey, targetKey string, placeBefore bool) error {
	if err := e.applyPatches(); err != nil {
		return err
	}
	if err := e.store.Reorder(sourceKey, targetKey, placeBefore); err != nil {
		return err
	}
	e.needsRebuild = true
	return e.settle()
}

// Clear removes every item and preference and resets transient state.
func (e *Engine) Clear() error {
	if err := e.store.Clear(); err != nil {
		return err
	}
	e.undo = nil
	e.patches = make(map[string]map[string]string)
	e.patchOrder = nil
	e.needsRebuild = true
	return e.settle()
}

// Replace swaps the whole collection (import override, hydrate-to-live) and
// rebuilds.
func (e *Engine) Replace(items []*types.Item) error {
	if err := e.store.Replace(items); err != nil {
		return err
	}
	if err := e.clearUndo(); err != nil {
		return err
	}
	e.patches = make(map[string]map[string]string)
	e.patchOrder = nil
	e.needsRebuild = true
	return e.settle()
}

// Title returns the persisted bibliography title.
func (e *Engine) Title() (string, error) {
	return e.store.Pref(store.PrefTitle)
}

// SetTitle persists the bibliography title.
func (e *Engine) SetTitle(title string) error {
	return e.store.SetPref(store.PrefTitle, title)
}
