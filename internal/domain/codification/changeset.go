package codification

import (
	"github.com/grd/grdctl/internal/platform/auth"
)

// BuildChangeset diffs the working copy against the baseline and returns the
// minimal per-record update payload for the given role, in load order.
//
// A field enters the changeset only when all of the following hold: the
// record exists in the baseline (records that appeared after load are not
// supported for partial sync), the field is not server-owned, the role may
// edit it (Administrador edits the union of all role sets), and the working
// value differs from the baseline value. Records with no surviving updates
// are omitted. An empty changeset means "nothing to save"; callers must not
// issue a network call for it.
func (s *Store) BuildChangeset(role string) Changeset {
	editable := auth.EditableFields(role)

	var cs Changeset
	for _, id := range s.order {
		working := s.working[id]
		baseline, ok := s.baseline[id]
		if !ok {
			// Load populates both maps together; a missing baseline means
			// the store was mutated outside its API.
			s.logger.Warn().Str("record_id", id).Msg("working record without baseline skipped")
			continue
		}

		updates := make(map[string]interface{})
		for field, value := range working {
			if _, protected := protectedFields[field]; protected {
				continue
			}
			if _, allowed := editable[field]; !allowed {
				continue
			}
			if valuesEqual(baseline[field], value) {
				continue
			}
			updates[field] = value
		}

		if len(updates) > 0 {
			cs = append(cs, Change{ID: id, Updates: updates})
		}
	}
	return cs
}
