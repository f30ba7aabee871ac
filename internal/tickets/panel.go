package tickets

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"expdash/internal/records"

	"github.com/rs/zerolog/log"
)

// PanelName identifies one of the uniform editing panels on a ticket.
type PanelName string

const (
	PanelProperties  PanelName = "Properties"
	PanelAudience    PanelName = "Audience"
	PanelDescription PanelName = "Description"
	PanelResults     PanelName = "Results"
	PanelData        PanelName = "Data"
)

// DiffFields returns only the fields whose edited value differs from the
// original. Submitting the diff instead of the full field set avoids
// unnecessary writes and keeps concurrent panel edits from clobbering each
// other's untouched fields.
func DiffFields(original, edited map[string]any) map[string]any {
	diff := make(map[string]any)
	for field, value := range edited {
		if !reflect.DeepEqual(original[field], value) {
			diff[field] = value
		}
	}
	return diff
}

// Panel implements the uniform edit protocol: entering edit mode snapshots
// the current values, Save submits only the changed fields and merges them
// back optimistically (no refetch, so concurrent local edits survive), and
// Cancel discards the draft.
//
// There is no cross-panel write lock; two panels saved concurrently resolve
// last-write-wins on the backend.
type Panel struct {
	Name PanelName

	mu       sync.Mutex
	original map[string]any
	draft    map[string]any
	editing  bool
}

// NewPanel creates a panel over the given field view of a record.
func NewPanel(name PanelName, fields map[string]any) *Panel {
	original := make(map[string]any, len(fields))
	for k, v := range fields {
		original[k] = v
	}
	return &Panel{Name: name, original: original}
}

// BeginEdit snapshots the current values into an editable draft.
func (p *Panel) BeginEdit() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.draft = make(map[string]any, len(p.original))
	for k, v := range p.original {
		p.draft[k] = v
	}
	p.editing = true
}

// Set updates a draft field. It is a no-op outside edit mode.
func (p *Panel) Set(field string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.editing {
		return
	}
	p.draft[field] = value
}

// Cancel discards the draft and leaves edit mode.
func (p *Panel) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.draft = nil
	p.editing = false
}

// Fields returns the panel's current view of the record fields.
func (p *Panel) Fields() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]any, len(p.original))
	for k, v := range p.original {
		out[k] = v
	}
	return out
}

// Editing reports whether the panel is in edit mode.
func (p *Panel) Editing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.editing
}

// Save diffs the draft against the snapshot, sends only the changed fields to
// the record backend and merges them into the local view on success. Returns
// the submitted diff (empty when nothing changed).
func (p *Panel) Save(ctx context.Context, client records.Client, table, recordID string) (map[string]any, error) {
	p.mu.Lock()
	if !p.editing {
		p.mu.Unlock()
		return nil, fmt.Errorf("panel %s is not in edit mode", p.Name)
	}
	diff := DiffFields(p.original, p.draft)
	p.mu.Unlock()

	if len(diff) == 0 {
		p.Cancel()
		return map[string]any{}, nil
	}

	if _, err := client.UpdateRecordFields(ctx, table, recordID, diff); err != nil {
		return nil, err
	}

	// Optimistic merge: apply the accepted diff locally instead of refetching,
	// so a concurrent edit in another panel is not clobbered.
	p.mu.Lock()
	for field, value := range diff {
		p.original[field] = value
	}
	p.draft = nil
	p.editing = false
	p.mu.Unlock()

	log.Debug().Str("panel", string(p.Name)).Int("fields", len(diff)).Msg("Panel diff saved")
	return diff, nil
}
