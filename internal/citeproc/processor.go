// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package citeproc wraps the citation formatting engine. The engine is
// opaque behind the Processor interface; the Adapter keeps the engine's
// reference and cluster state in lockstep with the caller's item list and
// translates batched diffs back into rendered values.
package citeproc

import (
	"errors"
	"fmt"

	"github.com/pdiddy/biblio-engine/pkg/types"
)

// EngineOptions parameterize an engine (re)construction.
type EngineOptions struct {
	// Flags are the active style's capability flags.
	Flags types.StyleFlags

	// Locale is the rendering locale.
	Locale string
}

// Processor is the contract of the underlying citation formatting engine.
// Reset must be called before any other method; every other call is
// synchronous and mutates only internal engine state.
type Processor interface {
	// Reset (re)constructs the engine for a style, invalidating all prior
	// reference and cluster state.
	Reset(xml string, opts EngineOptions) error

	// InsertReference upserts one item on the bibliographic-data side.
	InsertReference(item types.CSLItem) error
	// RemoveReference drops one item.
	RemoveReference(id string) error
	// ResetReferences replaces all references in the given order.
	ResetReferences(items []types.CSLItem) error

	// Cluster operations back fallback rendering for styles without a
	// bibliography section: one single-cite cluster per item.
	InitClusters(ids []string) error
	InsertCluster(id string) error
	RemoveCluster(id string) error
	SetClusterOrder(ids []string) error

	// MakeBibliography performs a full, non-incremental render.
	MakeBibliography() (types.RenderedBibliography, error)

	// BatchedUpdates returns the diff since the last render. With nothing
	// pending it returns an empty diff.
	BatchedUpdates() (types.UpdateDiff, error)
}

// Engine implementation names accepted by New.
const (
	EngineClassic = "classic"
	EngineCached  = "cached"
)

// ErrEngineNotBuilt is returned when a Processor method is called before
// Reset.
var ErrEngineNotBuilt = errors.New("citation engine not built")

// Options select a Processor implementation at session start.
type Options struct {
	// Engine names the implementation: "classic" (default) or "cached".
	Engine string
}

// New constructs the selected Processor implementation. The choice is made
// once per session; callers never branch on the engine kind afterwards.
func New(opts Options) (Processor, error) {
	switch opts.Engine {
	case "", EngineClassic:
		return newClassic(), nil
	case EngineCached:
		return newCached(), nil
	default:
		return nil, fmt.Errorf("unknown citation engine %q", opts.Engine)
	}
}
