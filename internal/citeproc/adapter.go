// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package citeproc

import (
	"fmt"

	"github.com/pdiddy/biblio-engine/pkg/types"
)

// Adapter owns the Processor on behalf of the synchronization engine. For
// styles without a bibliography section it mirrors every reference mutation
// into the cluster bookkeeping, so callers never issue cluster calls and the
// two sides cannot drift.
type Adapter struct {
	proc     Processor
	locale   string
	flags    types.StyleFlags
	fallback bool
	built    bool
}

// NewAdapter wraps a Processor. The engine is unusable until Rebuild.
func NewAdapter(proc Processor) *Adapter {
	return &Adapter{proc: proc}
}

// Built reports whether the underlying engine has been constructed for a
// style.
func (a *Adapter) Built() bool { return a.built }

// Fallback reports whether the active style renders per-item clusters.
func (a *Adapter) Fallback() bool { return a.fallback }

// Rebuild reconstructs the engine for a style and performs a full render:
// Reset, ResetReferences, full cluster init for fallback styles, and
// MakeBibliography. On any error the adapter marks itself unbuilt; the next
// rebuild starts from a clean Reset rather than resuming.
func (a *Adapter) Rebuild(style *types.Style, items []types.CSLItem) (types.RenderedBibliography, error) {
	a.built = false

	locale := style.DefaultLocale
	if locale == "" {
		locale = a.locale
	}
	if err := a.proc.Reset(style.XML, EngineOptions{Flags: style.Flags, Locale: locale}); err != nil {
		return types.RenderedBibliography{}, fmt.Errorf("resetting engine: %w", err)
	}
	a.flags = style.Flags
	a.fallback = !style.Flags.HasBibliography

	if err := a.resync(items); err != nil {
		return types.RenderedBibliography{}, err
	}

	bib, err := a.proc.MakeBibliography()
	if err != nil {
		return types.RenderedBibliography{}, fmt.Errorf("rendering bibliography: %w", err)
	}
	a.built = true
	return bib, nil
}

// SetLocale sets the fallback locale used when a style has no
// default-locale override. Takes effect at the next Rebuild.
func (a *Adapter) SetLocale(locale string) { a.locale = locale }

// Insert upserts one item, pairing the reference insert with a cluster
// insert for fallback styles. New items append; existing items keep their
// position.
func (a *Adapter) Insert(item types.CSLItem, isNew bool) error {
	if !a.built {
		return ErrEngineNotBuilt
	}
	if err := a.proc.InsertReference(item); err != nil {
		return err
	}
	if a.fallback && isNew {
		return a.proc.InsertCluster(item.ID)
	}
	return nil
}

// Remove drops one item from both sides.
func (a *Adapter) Remove(id string) error {
	if !a.built {
		return ErrEngineNotBuilt
	}
	if err := a.proc.RemoveReference(id); err != nil {
		return err
	}
	if a.fallback {
		return a.proc.RemoveCluster(id)
	}
	return nil
}

// Resync replaces all engine-side state with the given items in the given
// order, atomically issuing reference and cluster calls together.
func (a *Adapter) Resync(items []types.CSLItem) error {
	if !a.built {
		return ErrEngineNotBuilt
	}
	return a.resync(items)
}

func (a *Adapter) resync(items []types.CSLItem) error {
	if err := a.proc.ResetReferences(items); err != nil {
		return fmt.Errorf("resetting references: %w", err)
	}
	if !a.fallback {
		return nil
	}
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	if err := a.proc.InitClusters(ids); err != nil {
		return fmt.Errorf("initializing clusters: %w", err)
	}
	if err := a.proc.SetClusterOrder(ids); err != nil {
		return fmt.Errorf("setting cluster order: %w", err)
	}
	return nil
}

// Flush returns the batched diff since the last render. With nothing
// pending the diff is empty and triggers no dispatch.
func (a *Adapter) Flush() (types.UpdateDiff, error) {
	if !a.built {
		return types.UpdateDiff{}, ErrEngineNotBuilt
	}
	return a.proc.BatchedUpdates()
}
