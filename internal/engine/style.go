// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pdiddy/biblio-engine/internal/store"
	"github.com/pdiddy/biblio-engine/pkg/types"
)

// ChangeStyle resolves and activates a style. A failed resolution keeps the
// previous style active with no partial switch. A sentence-case style over a
// non-empty collection is staged instead: the rebuild blocks until
// ConfirmStyle or CancelStyle.
func (e *Engine) ChangeStyle(ctx context.Context, name string) error {
	if err := e.applyPatches(); err != nil {
		return err
	}
	style, err := e.styles.Resolve(ctx, name)
	if err != nil {
		e.log.Warn().Err(err).Str("style", name).Msg("style switch failed")
		return err
	}

	if e.needsConfirmation(style) {
		e.pending = style
		e.styleConfirmed = false
		e.needsRebuild = true
		e.log.Info().Str("style", name).Msg("style switch awaiting confirmation")
		return e.settle()
	}
	return e.activate(style)
}

// needsConfirmation reports whether switching to style irreversibly
// transforms item titles and therefore requires an explicit confirm.
func (e *Engine) needsConfirmation(style *types.Style) bool {
	if !style.Flags.SentenceCase || e.store.Len() == 0 {
		return false
	}
	return e.active == nil || !e.active.Flags.SentenceCase
}

// PendingStyle returns the style awaiting confirmation, or nil.
func (e *Engine) PendingStyle() *types.Style { return e.pending }

// ConfirmStyle applies the pending style: item titles are transformed once,
// then the style activates and the blocked rebuild runs.
func (e *Engine) ConfirmStyle() error {
	if e.pending == nil {
		return ErrNoPendingStyle
	}
	style := e.pending
	e.pending = nil

	for _, item := range e.store.Items() {
		title := item.Title()
		converted := e.transform(title)
		if converted == title {
			continue
		}
		updated := item.Clone()
		updated.SetField("title", converted)
		if err := e.store.Update(updated); err != nil {
			return fmt.Errorf("converting title: %w", err)
		}
	}
	return e.activate(style)
}

// CancelStyle abandons the pending switch and re-fetches the previously
// active style so its definition is known-fresh.
func (e *Engine) CancelStyle(ctx context.Context) error {
	if e.pending == nil {
		return ErrNoPendingStyle
	}
	e.pending = nil
	e.styleConfirmed = true

	if e.active != nil {
		if style, err := e.styles.Resolve(ctx, e.active.Name); err != nil {
			e.log.Warn().Err(err).Str("style", e.active.Name).Msg("re-fetch failed, keeping in-memory style")
		} else {
			e.active = style
		}
	}
	e.needsRebuild = true
	return e.settle()
}

// SetIncomingStyle resolves a style into the incoming slot, used to preview
// an about-to-be-applied style during import flows. It never touches the
// active slot.
func (e *Engine) SetIncomingStyle(ctx context.Context, name string) error {
	style, err := e.styles.Resolve(ctx, name)
	if err != nil {
		return err
	}
	e.incoming = style
	return nil
}

// IncomingStyle returns the incoming slot, or nil.
func (e *Engine) IncomingStyle() *types.Style { return e.incoming }

// ApplyIncomingStyle promotes the incoming style to active. This is an
// explicit operation, never a side effect of resolving.
func (e *Engine) ApplyIncomingStyle() error {
	if e.incoming == nil {
		return fmt.Errorf("no incoming style set")
	}
	style := e.incoming
	e.incoming = nil

	if e.needsConfirmation(style) {
		e.pending = style
		e.styleConfirmed = false
		e.needsRebuild = true
		return e.settle()
	}
	return e.activate(style)
}

// activate makes style the active one, persists the choice, and rebuilds.
func (e *Engine) activate(style *types.Style) error {
	e.active = style
	e.styleLoaded = true
	e.styleConfirmed = true
	if err := e.store.SetPref(store.PrefStyle, style.Name); err != nil {
		return fmt.Errorf("persisting style: %w", err)
	}
	if err := e.recordInstalled(style.Name); err != nil {
		return err
	}
	e.needsRebuild = true
	return e.settle()
}

// recordInstalled adds a style to the installed-styles preference so
// listings can surface previously used styles even when the repository
// listing is unavailable.
func (e *Engine) recordInstalled(name string) error {
	installed, err := e.store.Pref(store.PrefInstalledStyles)
	if err != nil {
		return err
	}
	names := strings.Fields(installed)
	for _, n := range names {
		if n == name {
			return nil
		}
	}
	names = append(names, name)
	return e.store.SetPref(store.PrefInstalledStyles, strings.Join(names, " "))
}

// InstalledStyles returns the names of styles activated at least once.
func (e *Engine) InstalledStyles() ([]string, error) {
	installed, err := e.store.Pref(store.PrefInstalledStyles)
	if err != nil {
		return nil, err
	}
	return strings.Fields(installed), nil
}

var lowerCaser = cases.Lower(language.English)

// SentenceCase is the default title conversion: words after the first are
// lowercased unless they open a subtitle or read as an acronym. Interior
// whitespace is collapsed.
func SentenceCase(title string) string {
	words := strings.Fields(title)
	for i, w := range words {
		if i == 0 || strings.HasSuffix(words[i-1], ":") {
			continue
		}
		if isAcronym(w) {
			continue
		}
		words[i] = lowerCaser.String(w)
	}
	return strings.Join(words, " ")
}

// isAcronym reports an all-uppercase word of length two or more.
func isAcronym(w string) bool {
	letters := 0
	for _, r := range w {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= 'A' && r <= 'Z' {
			letters++
		}
	}
	return letters >= 2
}
