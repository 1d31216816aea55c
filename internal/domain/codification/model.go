package codification

// Record is one normalized codification row: a flat mapping of field name to
// scalar value (string, number, bool, or nil) as delivered by the backend.
// The backend schema is wide (~80 columns) and evolves server-side, so the
// client does not pin a struct per column; only the identity fields are fixed.
type Record map[string]interface{}

// ID returns the record's opaque, stable identifier.
func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}

// Clone returns an independent copy of the record. Values are scalars, so a
// shallow copy of the map is a deep copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// protectedFields are server-owned and excluded from every changeset
// regardless of role.
var protectedFields = map[string]struct{}{
	"id":        {},
	"batchId":   {},
	"createdAt": {},
	"updatedAt": {},
}

// Batch describes one imported file tracked through import, normalization,
// and edit.
type Batch struct {
	ID            string  `json:"id"`
	Filename      string  `json:"filename"`
	Status        string  `json:"status"`
	TotalRows     int     `json:"totalRows"`
	ProcessedRows int     `json:"processedRows"`
	ErrorRows     int     `json:"errorRows"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
	CompletedAt   *string `json:"completedAt,omitempty"`
}

// Import batch states as reported by the backend.
const (
	BatchPending            = "PENDING"
	BatchProcessing         = "PROCESSING"
	BatchCompleted          = "COMPLETED"
	BatchFailed             = "FAILED"
	BatchPartiallyCompleted = "PARTIALLY_COMPLETED"
)

// HasData reports whether the batch's normalized records can be fetched.
func (b Batch) HasData() bool {
	return b.Status == BatchCompleted || b.Status == BatchPartiallyCompleted
}

// Change is one record's pending field updates within a changeset.
type Change struct {
	ID      string                 `json:"id"`
	Updates map[string]interface{} `json:"updates"`
}

// Changeset is the minimal per-record update payload sent on save, ordered by
// the records' load order.
type Changeset []Change

// ImportResult is the backend's summary of a processed upload.
type ImportResult struct {
	BatchID       string `json:"batchId"`
	ProcessedRows int    `json:"processedRows"`
	ErrorRows     int    `json:"errorRows"`
}
