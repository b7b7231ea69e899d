// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine is the synchronization core: it owns the item store, the
// active style, and the citation processor adapter, and keeps the rendered
// bibliography projection consistent with them through full rebuilds and
// incremental refreshes. All operations are synchronous; every mutation
// settles (rebuild or refresh, never both) before returning.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pdiddy/biblio-engine/internal/citeproc"
	"github.com/pdiddy/biblio-engine/internal/store"
	"github.com/pdiddy/biblio-engine/internal/translate"
	"github.com/pdiddy/biblio-engine/pkg/types"
)

var (
	// ErrNoUndo is returned by UndoDelete when no delete is buffered.
	ErrNoUndo = errors.New("no delete to undo")

	// ErrNoPendingStyle is returned by ConfirmStyle/CancelStyle when no
	// style switch is awaiting confirmation.
	ErrNoPendingStyle = errors.New("no style switch pending")

	// ErrNoSelection is returned by CommitSelection when no candidate set
	// is staged.
	ErrNoSelection = errors.New("no selection staged")
)

// StyleSource resolves styles by name.
type StyleSource interface {
	Resolve(ctx context.Context, name string) (*types.Style, error)
}

// SchemaSource loads the item-type schema and validates items against it.
type SchemaSource interface {
	Load(ctx context.Context) error
	Loaded() bool
	Validate(item *types.Item) []types.FieldError
	RemapBaseFields(item *types.Item, newType string)
}

// Translator resolves raw input into candidate items.
type Translator interface {
	Resolve(ctx context.Context, input string, existing []*types.Item) (translate.Outcome, error)
	ResolveImport(ctx context.Context, payload []byte, existing []*types.Item) (translate.Outcome, error)
	ResolveChoice(ctx context.Context, url, choiceKey, session string, existing []*types.Item) (translate.Outcome, error)
	ResolveMore(ctx context.Context, url, session string, existing []*types.Item) (translate.Outcome, error)
}

// TitleTransform rewrites an item title when a style demanding a title
// convention is confirmed. The exact casing rule is policy, not contract.
type TitleTransform func(string) string

// deletedItem is the one-slot undo buffer. It persists as a preference so
// the undo survives a session restart; the next delete supersedes it.
type deletedItem struct {
	Item    *types.Item `json:"item"`
	Index   int         `json:"index"`
	WasLast bool        `json:"was_last"`
}

// pendingAcquisition carries the context needed to re-enter a
// MULTIPLE_CHOICES response: the original input, the continuation cursor,
// and the normalized titles already offered so later pages never repeat a
// candidate.
type pendingAcquisition struct {
	input   string
	session string
	seen    map[string]bool
}

// Params wires an Engine.
type Params struct {
	Store      *store.Store
	Styles     StyleSource
	Schema     SchemaSource
	Translator Translator
	Processor  citeproc.Processor
	Config     types.EngineConfig
	Logger     zerolog.Logger
}

// Engine is the synchronization reducer. It is single-threaded: callers
// must not invoke operations concurrently.
type Engine struct {
	store      *store.Store
	styles     StyleSource
	schema     SchemaSource
	translator Translator
	adapter    *citeproc.Adapter
	cfg        types.EngineConfig
	log        zerolog.Logger

	// Readiness flags, combined by Ready.
	styleConfirmed bool
	styleLoaded    bool
	dataLoaded     bool
	queryHandled   bool
	schemaLoaded   bool

	needsRebuild bool
	needsRefresh bool

	active   *types.Style
	incoming *types.Style
	pending  *types.Style

	bib types.Bibliography

	undo       *deletedItem
	patches    map[string]map[string]string
	patchOrder []string

	staged  []*types.Item
	choices *pendingAcquisition

	transform TitleTransform
}

// New constructs an Engine. Call Start before any other operation.
func New(p Params) *Engine {
	adapter := citeproc.NewAdapter(p.Processor)
	adapter.SetLocale(p.Config.Locale)
	return &Engine{
		store:        p.Store,
		styles:       p.Styles,
		schema:       p.Schema,
		translator:   p.Translator,
		adapter:      adapter,
		cfg:          p.Config,
		log:          p.Logger.With().Str("component", "engine").Logger(),
		queryHandled: true,
		patches:      make(map[string]map[string]string),
		transform:    SentenceCase,
	}
}

// SetTitleTransform overrides the title conversion policy.
func (e *Engine) SetTitleTransform(t TitleTransform) {
	if t != nil {
		e.transform = t
	}
}

// Start loads persisted items, the schema, and the active style, then
// performs the initial rebuild. Style and schema failures degrade the
// readiness gate instead of failing Start; only a store failure is fatal.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Load(); err != nil {
		return fmt.Errorf("loading items: %w", err)
	}
	e.dataLoaded = true
	e.loadUndo()

	if err := e.schema.Load(ctx); err != nil {
		e.log.Warn().Err(err).Msg("schema unavailable")
	}
	e.schemaLoaded = e.schema.Loaded()

	name, err := e.store.Pref(store.PrefStyle)
	if err != nil {
		return fmt.Errorf("reading style pref: %w", err)
	}
	if name == "" {
		name = e.cfg.DefaultStyle
	}

	style, err := e.styles.Resolve(ctx, name)
	if err != nil {
		e.log.Warn().Err(err).Str("style", name).Msg("style unavailable")
	} else {
		e.active = style
		e.styleLoaded = true
		e.styleConfirmed = true
	}

	e.needsRebuild = true
	return e.settle()
}

// RetrySchema re-attempts a failed schema load and settles.
func (e *Engine) RetrySchema(ctx context.Context) error {
	if err := e.schema.Load(ctx); err != nil {
		return err
	}
	e.schemaLoaded = true
	return e.settle()
}

// Ready reports whether the projection is current and the engine can accept
// operations whose results are immediately visible.
func (e *Engine) Ready() bool {
	return e.styleConfirmed && e.styleLoaded && e.adapter.Built() &&
		e.dataLoaded && e.queryHandled && e.schemaLoaded && !e.needsRebuild
}

// Bibliography returns the current projection. It is derived state,
// rebuildable from the store and the active style at any time.
func (e *Engine) Bibliography() types.Bibliography { return e.bib }

// ActiveStyle returns the style driving rendering, or nil before Start.
func (e *Engine) ActiveStyle() *types.Style { return e.active }

// settle flushes debounced patches, then runs exactly one of rebuild or
// refresh. A pending rebuild supersedes and absorbs any pending refresh.
func (e *Engine) settle() error {
	if err := e.applyPatches(); err != nil {
		return err
	}
	if e.needsRebuild {
		if !e.canRebuild() {
			return nil
		}
		return e.rebuild()
	}
	if e.needsRefresh && e.adapter.Built() {
		return e.refresh()
	}
	return nil
}

// canRebuild checks the rebuild preconditions. An unconfirmed style switch
// blocks the rebuild until the user confirms or cancels.
func (e *Engine) canRebuild() bool {
	return e.styleConfirmed && e.styleLoaded && e.active != nil &&
		e.dataLoaded && e.queryHandled && e.schemaLoaded
}

// rebuild fully re-derives the projection. A failed rebuild leaves
// needsRebuild set; the next attempt restarts from a clean engine reset.
func (e *Engine) rebuild() error {
	rendered, err := e.adapter.Rebuild(e.active, e.cslItems())
	if err != nil {
		return fmt.Errorf("rebuilding bibliography: %w", err)
	}
	e.needsRebuild = false
	e.needsRefresh = false

	e.bib = types.Bibliography{
		Entries: rendered.Entries,
		Meta:    rendered.Meta,
		Lookup:  e.lookup(),
	}
	e.log.Debug().Int("entries", len(rendered.Entries)).Str("style", e.active.Name).Msg("rebuilt")
	return nil
}

// refresh applies the batched diff to the projection: changed entries take
// their new value, all others keep the previous one.
func (e *Engine) refresh() error {
	diff, err := e.adapter.Flush()
	if err != nil {
		return fmt.Errorf("refreshing bibliography: %w", err)
	}
	e.needsRefresh = false

	previous := make(map[string]string, len(e.bib.Entries))
	for _, entry := range e.bib.Entries {
		previous[entry.ID] = entry.Value
	}

	updated := make(map[string]string)
	var order []string
	switch {
	case e.adapter.Fallback():
		// Cluster order is kept in lockstep with the store.
		order = e.store.Keys()
		for _, c := range diff.Clusters {
			updated[c.ID] = c.Value
		}
	case diff.Bibliography != nil:
		order = diff.Bibliography.EntryIDs
		updated = diff.Bibliography.UpdatedEntries
	default:
		order = e.bib.Keys()
	}

	entries := make([]types.BibEntry, len(order))
	for i, id := range order {
		value, ok := updated[id]
		if !ok {
			value = previous[id]
		}
		entries[i] = types.BibEntry{ID: id, Value: value}
	}

	e.bib = types.Bibliography{Entries: entries, Meta: e.bib.Meta, Lookup: e.lookup()}
	return nil
}

func (e *Engine) cslItems() []types.CSLItem {
	items := e.store.Items()
	csl := make([]types.CSLItem, len(items))
	for i, item := range items {
		csl[i] = item.ToCSL()
	}
	return csl
}

func (e *Engine) lookup() map[string]types.Item {
	lookup := make(map[string]types.Item, e.store.Len())
	for _, item := range e.store.Items() {
		lookup[item.Key] = *item
	}
	return lookup
}

// syncInsert mirrors a store insert or update into the citation engine. A
// not-built engine is fine: the pending rebuild resyncs everything.
func (e *Engine) syncInsert(item *types.Item, isNew bool) error {
	err := e.adapter.Insert(item.ToCSL(), isNew)
	if errors.Is(err, citeproc.ErrEngineNotBuilt) {
		return nil
	}
	return err
}

func (e *Engine) syncRemove(key string) error {
	err := e.adapter.Remove(key)
	if errors.Is(err, citeproc.ErrEngineNotBuilt) {
		return nil
	}
	return err
}
