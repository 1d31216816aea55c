package codification

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/grd/grdctl/internal/platform/auth"
	"github.com/grd/grdctl/internal/platform/rest"
	"github.com/grd/grdctl/internal/platform/upload"
)

const basePath = "/api/codification"

var (
	// ErrNothingToSave is returned when the changeset is empty; no network
	// call is made in that case.
	ErrNothingToSave = errors.New("no changes to save")
	// ErrUploadNotAllowed is returned when the current role cannot import.
	ErrUploadNotAllowed = errors.New("role is not allowed to upload files")
	// ErrBatchNotFound is returned when the backend knows no batch by that id.
	ErrBatchNotFound = errors.New("batch not found")
	// ErrBatchNotReady is returned when a batch has no fetchable normalized
	// records yet (still pending or processing, or the import failed).
	ErrBatchNotReady = errors.New("batch has no normalized data")
)

// Gateway submits changesets to the backend and reconciles the store with the
// server's resulting authoritative state. It also covers batch listing and
// CSV imports for the codification area.
type Gateway struct {
	api     *rest.Client
	store   *Store
	logger  zerolog.Logger
	preflit upload.Preflight
}

func NewGateway(api *rest.Client, store *Store, maxUploadMB int, logger zerolog.Logger) *Gateway {
	return &Gateway{
		api:     api,
		store:   store,
		logger:  logger,
		preflit: upload.Preflight{Extensions: []string{".csv"}, MaxBytes: int64(maxUploadMB) * 1024 * 1024},
	}
}

// Store exposes the change-tracking store owned by this gateway.
func (g *Gateway) Store() *Store { return g.store }

type batchesEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Batches []Batch `json:"batches"`
	} `json:"data"`
}

type normalizedEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		NormalizedData []Record `json:"normalizedData"`
	} `json:"data"`
}

type saveEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type importEnvelope struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    ImportResult `json:"data"`
}

// ListBatches returns the import batches known to the backend.
func (g *Gateway) ListBatches(ctx context.Context) ([]Batch, error) {
	var out batchesEnvelope
	if err := g.api.Get(ctx, basePath+"/batches", nil, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, envelopeError("listing batches", out.Message)
	}
	return out.Data.Batches, nil
}

// Batch looks up one batch by id in the backend's batch list.
func (g *Gateway) Batch(ctx context.Context, batchID string) (*Batch, error) {
	batches, err := g.ListBatches(ctx)
	if err != nil {
		return nil, err
	}
	for i := range batches {
		if batches[i].ID == batchID {
			return &batches[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
}

// LoadBatch fetches the batch's normalized records and loads the store with
// them, establishing a fresh baseline. Batches that have not finished
// normalization carry no fetchable records and are rejected up front.
func (g *Gateway) LoadBatch(ctx context.Context, batchID string) error {
	batch, err := g.Batch(ctx, batchID)
	if err != nil {
		return err
	}
	if !batch.HasData() {
		return fmt.Errorf("%w: %s is %s", ErrBatchNotReady, batchID, batch.Status)
	}
	records, err := g.fetchNormalized(ctx, batchID)
	if err != nil {
		return err
	}
	g.store.Load(records)
	g.logger.Info().Str("batch_id", batchID).Int("records", g.store.Len()).Msg("batch loaded")
	return nil
}

// Save builds the role-filtered changeset and submits it. On success the
// batch's records are refetched and the store reloaded from server truth,
// since the server may apply derived/enrichment fields beyond what was
// submitted. On failure the working copy and the unsaved-changes flag are
// left untouched so the user can retry without losing edits.
func (g *Gateway) Save(ctx context.Context, batchID, role string) error {
	changes := g.store.BuildChangeset(role)
	if len(changes) == 0 {
		return ErrNothingToSave
	}
	if err := g.store.BeginSave(); err != nil {
		return err
	}

	var out saveEnvelope
	body := map[string]interface{}{"changes": changes}
	if err := g.api.PatchJSON(ctx, basePath+"/batches/"+batchID+"/normalized", body, &out); err != nil {
		g.store.AbortSave()
		return err
	}
	if !out.Success {
		g.store.AbortSave()
		return envelopeError("saving changes", out.Message)
	}

	records, err := g.fetchNormalized(ctx, batchID)
	if err != nil {
		// The changes were applied; only the resynchronization failed. Keep
		// the dirty state so the user knows local data is not confirmed.
		g.store.AbortSave()
		return fmt.Errorf("changes saved but refetch failed, refresh the batch: %w", err)
	}
	g.store.Load(records)
	g.logger.Info().Str("batch_id", batchID).Int("changed_records", len(changes)).Msg("changes saved")
	return nil
}

// Upload imports a codification CSV. The upload is gated by role and
// preflighted client-side (extension and size) before any bytes move, the
// same checks the original intake applies.
func (g *Gateway) Upload(ctx context.Context, path, role string) (*ImportResult, error) {
	if !auth.CanUpload(role) {
		return nil, ErrUploadNotAllowed
	}
	f, err := g.preflit.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out importEnvelope
	if err := g.api.Upload(ctx, basePath+"/csv", "file", path, f, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, envelopeError("importing file", out.Message)
	}
	return &out.Data, nil
}

func (g *Gateway) fetchNormalized(ctx context.Context, batchID string) ([]Record, error) {
	var out normalizedEnvelope
	if err := g.api.Get(ctx, basePath+"/batches/"+batchID+"/normalized", nil, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, envelopeError("fetching normalized data", out.Message)
	}
	return out.Data.NormalizedData, nil
}

// envelopeError covers the backend's 200-with-success:false responses.
func envelopeError(op, message string) error {
	if message == "" {
		return fmt.Errorf("%s: backend reported failure", op)
	}
	return fmt.Errorf("%s: %s", op, message)
}
