package codification

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/rs/zerolog"
)

var (
	// ErrRowBusy is returned by Edit while another row is in edit mode.
	ErrRowBusy = errors.New("another row is already being edited")
	// ErrNoRowInEdit is returned when a buffer operation has no target row.
	ErrNoRowInEdit = errors.New("no row is in edit mode")
	// ErrSaveInFlight guards against overlapping save operations.
	ErrSaveInFlight = errors.New("a save is already in flight")
)

// Store owns the client-side state of one open batch: the Baseline Snapshot
// (server truth as of the last fetch), the Working Copy (baseline plus
// committed edits), and the Edit Buffer for the single row currently being
// edited. Nothing outside this type mutates that state.
//
// Batch lifecycle: Loaded → Dirty → Saving → (Loaded on success | Dirty on
// failure). Row lifecycle: Clean → Editing → (Cancelled | Committed).
type Store struct {
	logger zerolog.Logger

	order    []string
	baseline map[string]Record
	working  map[string]Record

	editing string
	pending map[string]interface{}

	dirty  bool
	saving bool
}

func NewStore(logger zerolog.Logger) *Store {
	return &Store{
		logger:   logger,
		baseline: make(map[string]Record),
		working:  make(map[string]Record),
	}
}

// Load replaces the baseline and working copy with independent deep copies of
// records, sanitizing numeric fields on the way in. Rows without a string id
// are dropped (the backend has produced them during partial imports). Any
// edit buffer, dirty flag, and in-flight-save marker are cleared.
func (s *Store) Load(records []Record) {
	s.order = s.order[:0]
	s.baseline = make(map[string]Record, len(records))
	s.working = make(map[string]Record, len(records))

	for _, rec := range records {
		id := rec.ID()
		if id == "" {
			s.logger.Warn().Msg("dropping normalized row without id")
			continue
		}
		if _, dup := s.baseline[id]; dup {
			s.logger.Warn().Str("record_id", id).Msg("dropping duplicate normalized row")
			continue
		}
		clean := sanitizeRecord(rec.Clone())
		s.order = append(s.order, id)
		s.baseline[id] = clean
		s.working[id] = clean.Clone()
	}

	s.editing = ""
	s.pending = nil
	s.dirty = false
	s.saving = false
}

// Len returns the number of loaded records.
func (s *Store) Len() int { return len(s.order) }

// Records returns the working copy in load order. The returned records are
// copies; callers cannot mutate store state through them.
func (s *Store) Records() []Record {
	out := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.working[id].Clone())
	}
	return out
}

// Get returns a copy of the working-copy record with the given id.
func (s *Store) Get(id string) (Record, bool) {
	rec, ok := s.working[id]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// BaselineRecord returns a copy of the baseline record with the given id.
func (s *Store) BaselineRecord(id string) (Record, bool) {
	rec, ok := s.baseline[id]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Edit puts the row with the given id into edit mode. At most one row may be
// in edit mode at a time; this is a store invariant, not a UI affordance.
func (s *Store) Edit(id string) error {
	if s.editing != "" && s.editing != id {
		return fmt.Errorf("%w: %s", ErrRowBusy, s.editing)
	}
	if _, ok := s.working[id]; !ok {
		return fmt.Errorf("record %s not found", id)
	}
	s.editing = id
	if s.pending == nil {
		s.pending = make(map[string]interface{})
	}
	return nil
}

// SetPending records an uncommitted value for a field of the row in edit
// mode. Values are stored raw; numeric coercion happens at commit.
func (s *Store) SetPending(id, field string, value interface{}) error {
	if s.editing == "" || s.editing != id {
		return ErrNoRowInEdit
	}
	s.pending[field] = value
	return nil
}

// Cancel leaves edit mode and discards the edit buffer.
func (s *Store) Cancel() {
	s.editing = ""
	s.pending = nil
}

// Commit merges the edit buffer into the working copy and leaves edit mode.
func (s *Store) Commit() error {
	if s.editing == "" {
		return ErrNoRowInEdit
	}
	id, values := s.editing, s.pending
	s.editing = ""
	s.pending = nil
	s.CommitRowEdit(id, values)
	return nil
}

// CommitRowEdit merges fieldValues into the working-copy record matching id,
// applying numeric coercion per field. A missing id is a logged no-op: a
// refetch can race an in-flight edit, and that race is benign from the
// user's perspective. The unsaved-changes flag is set only when a value
// actually changed.
func (s *Store) CommitRowEdit(id string, fieldValues map[string]interface{}) {
	rec, ok := s.working[id]
	if !ok {
		s.logger.Warn().Str("record_id", id).Msg("commit for unknown record ignored")
		return
	}
	changed := false
	for field, raw := range fieldValues {
		coerced := CoerceFieldValue(field, raw)
		if !valuesEqual(rec[field], coerced) {
			rec[field] = coerced
			changed = true
		}
	}
	if changed {
		s.dirty = true
	}
}

// Discard resets the working copy to a fresh deep copy of the baseline and
// clears the edit buffer and the unsaved-changes flag. Destructive; callers
// must confirm with the user first.
func (s *Store) Discard() {
	s.working = make(map[string]Record, len(s.baseline))
	for id, rec := range s.baseline {
		s.working[id] = rec.Clone()
	}
	s.editing = ""
	s.pending = nil
	s.dirty = false
}

// IsRowBeingEdited reports whether id is the row currently in edit mode.
func (s *Store) IsRowBeingEdited(id string) bool {
	return id != "" && id == s.editing
}

// EditingRow returns the id of the row in edit mode, or "".
func (s *Store) EditingRow() string { return s.editing }

// HasUnsavedChanges reports whether the working copy has committed edits not
// yet saved to the backend.
func (s *Store) HasUnsavedChanges() bool { return s.dirty }

// Saving reports whether a save is in flight.
func (s *Store) Saving() bool { return s.saving }

// BeginSave marks a save as in flight, rejecting overlapping saves.
func (s *Store) BeginSave() error {
	if s.saving {
		return ErrSaveInFlight
	}
	s.saving = true
	return nil
}

// AbortSave ends a failed save, leaving the working copy and the
// unsaved-changes flag untouched so the user can retry without losing edits.
func (s *Store) AbortSave() {
	s.saving = false
}

// valuesEqual compares two record values by value. Numeric types compare
// numerically so a float64 from JSON matches an int from test fixtures; nil
// equals nil (an absent optional field and an explicit null are the same
// value, which prevents spurious diffs).
func valuesEqual(a, b interface{}) bool {
	if a == nil && b == nil {
		return true
	}
	fa, aNum := asNumber(a)
	fb, bNum := asNumber(b)
	if aNum && bNum {
		return fa == fb
	}
	if aNum != bNum {
		return false
	}
	return reflect.DeepEqual(a, b)
}

func asNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
