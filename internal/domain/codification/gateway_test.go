package codification

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/grd/grdctl/internal/platform/auth"
	"github.com/grd/grdctl/internal/platform/rest"
)

// fakeBackend is an in-process stand-in for the codification API. It keeps
// the normalized records mutable so a PATCH followed by a GET observes the
// applied changes plus whatever enrichment the server adds.
type fakeBackend struct {
	mu          sync.Mutex
	records     []Record
	batchStatus string
	patchStatus int
	patches     int
	fetches     int
	uploads     int

	server *httptest.Server
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{
		records:     testRecords(),
		batchStatus: BatchCompleted,
	}

	e := echo.New()
	api := e.Group("/api/codification")
	api.GET("/batches", func(c echo.Context) error {
		fb.mu.Lock()
		defer fb.mu.Unlock()
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"batches": []Batch{{
					ID: "b1", Filename: "enero.csv", Status: fb.batchStatus,
					TotalRows: 2, ProcessedRows: 2,
				}},
			},
		})
	})
	api.GET("/batches/:id/normalized", func(c echo.Context) error {
		fb.mu.Lock()
		defer fb.mu.Unlock()
		fb.fetches++
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"normalizedData": fb.records},
		})
	})
	api.PATCH("/batches/:id/normalized", func(c echo.Context) error {
		fb.mu.Lock()
		defer fb.mu.Unlock()
		fb.patches++
		if fb.patchStatus != 0 {
			return c.JSON(fb.patchStatus, map[string]interface{}{
				"success": false,
				"message": "acceso denegado",
			})
		}
		var body struct {
			Changes []Change `json:"changes"`
		}
		if err := c.Bind(&body); err != nil {
			return err
		}
		for _, change := range body.Changes {
			for _, rec := range fb.records {
				if rec.ID() != change.ID {
					continue
				}
				for field, value := range change.Updates {
					rec[field] = value
				}
				// The backend re-derives grouping fields on every write.
				rec["irGrdCodigo"] = "14011"
				rec["updatedAt"] = "2025-02-01T00:00:00Z"
			}
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"success": true})
	})
	api.POST("/csv", func(c echo.Context) error {
		fb.mu.Lock()
		defer fb.mu.Unlock()
		fb.uploads++
		if _, err := c.FormFile("file"); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"success": false,
				"message": "archivo no recibido",
			})
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    ImportResult{BatchID: "b2", ProcessedRows: 10, ErrorRows: 1},
		})
	})

	fb.server = httptest.NewServer(e)
	t.Cleanup(fb.server.Close)
	return fb
}

func (fb *fakeBackend) gateway(t *testing.T) *Gateway {
	t.Helper()
	client := rest.NewClient(fb.server.URL, 5*time.Second, auth.NewStaticTokenSource("tok"), zerolog.Nop())
	return NewGateway(client, NewStore(zerolog.Nop()), 10, zerolog.Nop())
}

func TestGateway_ListBatches(t *testing.T) {
	fb := newFakeBackend(t)
	g := fb.gateway(t)

	batches, err := g.ListBatches(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batches) != 1 || batches[0].ID != "b1" || batches[0].Status != BatchCompleted {
		t.Errorf("unexpected batches: %+v", batches)
	}
}

func TestGateway_LoadBatch(t *testing.T) {
	fb := newFakeBackend(t)
	g := fb.gateway(t)

	if err := g.LoadBatch(context.Background(), "b1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Store().Len() != 2 {
		t.Fatalf("expected 2 records, got %d", g.Store().Len())
	}
	if g.Store().HasUnsavedChanges() {
		t.Error("freshly loaded batch must be clean")
	}
}

func TestGateway_LoadBatchWithoutDataIsRejected(t *testing.T) {
	for _, status := range []string{BatchPending, BatchProcessing, BatchFailed} {
		t.Run(status, func(t *testing.T) {
			fb := newFakeBackend(t)
			fb.batchStatus = status
			g := fb.gateway(t)

			err := g.LoadBatch(context.Background(), "b1")
			if !errors.Is(err, ErrBatchNotReady) {
				t.Fatalf("expected ErrBatchNotReady, got %v", err)
			}
			if fb.fetches != 0 {
				t.Errorf("expected no normalized fetch for a %s batch, got %d", status, fb.fetches)
			}
		})
	}
}

func TestGateway_LoadBatchPartiallyCompleted(t *testing.T) {
	fb := newFakeBackend(t)
	fb.batchStatus = BatchPartiallyCompleted
	g := fb.gateway(t)

	if err := g.LoadBatch(context.Background(), "b1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Store().Len() != 2 {
		t.Fatalf("expected 2 records, got %d", g.Store().Len())
	}
}

func TestGateway_LoadBatchUnknownID(t *testing.T) {
	fb := newFakeBackend(t)
	g := fb.gateway(t)

	err := g.LoadBatch(context.Background(), "nope")
	if !errors.Is(err, ErrBatchNotFound) {
		t.Fatalf("expected ErrBatchNotFound, got %v", err)
	}
	if fb.fetches != 0 {
		t.Errorf("expected no normalized fetch for an unknown batch, got %d", fb.fetches)
	}
}

func TestGateway_SaveEmptyChangesetMakesNoCall(t *testing.T) {
	fb := newFakeBackend(t)
	g := fb.gateway(t)
	g.LoadBatch(context.Background(), "b1")

	err := g.Save(context.Background(), "b1", auth.RoleAdministrador)
	if !errors.Is(err, ErrNothingToSave) {
		t.Fatalf("expected ErrNothingToSave, got %v", err)
	}
	if fb.patches != 0 {
		t.Errorf("expected no PATCH for an empty changeset, got %d", fb.patches)
	}
}

func TestGateway_SaveReloadsServerTruth(t *testing.T) {
	fb := newFakeBackend(t)
	g := fb.gateway(t)
	g.LoadBatch(context.Background(), "b1")

	g.Store().CommitRowEdit("r1", map[string]interface{}{"diagnosticoPrincipal": "J19"})
	if err := g.Save(context.Background(), "b1", auth.RoleAdministrador); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, _ := g.Store().Get("r1")
	if rec["diagnosticoPrincipal"] != "J19" {
		t.Errorf("expected saved value after reload, got %v", rec["diagnosticoPrincipal"])
	}
	if rec["irGrdCodigo"] != "14011" {
		t.Error("server-derived enrichment fields must survive the post-save reload")
	}
	if g.Store().HasUnsavedChanges() {
		t.Error("store must be clean after a successful save")
	}
	if g.Store().Saving() {
		t.Error("no save may remain in flight")
	}
	if fb.patches != 1 {
		t.Errorf("expected exactly 1 PATCH, got %d", fb.patches)
	}

	// The local working copy now matches a completely fresh load.
	fresh := fb.gateway(t)
	fresh.LoadBatch(context.Background(), "b1")
	freshRec, _ := fresh.Store().Get("r1")
	for field, want := range freshRec {
		if !valuesEqual(rec[field], want) {
			t.Errorf("field %s: saved copy %v != fresh load %v", field, rec[field], want)
		}
	}
}

func TestGateway_SaveAuthFailureKeepsLocalEdits(t *testing.T) {
	fb := newFakeBackend(t)
	g := fb.gateway(t)
	g.LoadBatch(context.Background(), "b1")
	fb.patchStatus = http.StatusUnauthorized

	g.Store().CommitRowEdit("r1", map[string]interface{}{"diagnosticoPrincipal": "J19"})
	err := g.Save(context.Background(), "b1", auth.RoleAdministrador)
	if !rest.IsAuth(err) {
		t.Fatalf("expected an auth error, got %v", err)
	}

	rec, _ := g.Store().Get("r1")
	if rec["diagnosticoPrincipal"] != "J19" {
		t.Error("failed save must not touch the working copy")
	}
	if !g.Store().HasUnsavedChanges() {
		t.Error("failed save must leave the unsaved-changes flag set")
	}
	if g.Store().Saving() {
		t.Error("failed save must release the in-flight marker")
	}

	// Retry once the backend accepts again.
	fb.patchStatus = 0
	if err := g.Save(context.Background(), "b1", auth.RoleAdministrador); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if g.Store().HasUnsavedChanges() {
		t.Error("store must be clean after the retried save")
	}
}

func TestGateway_SaveValidationFailureKeepsLocalEdits(t *testing.T) {
	fb := newFakeBackend(t)
	g := fb.gateway(t)
	g.LoadBatch(context.Background(), "b1")
	fb.patchStatus = http.StatusBadRequest

	g.Store().CommitRowEdit("r1", map[string]interface{}{"sexo": "M"})
	err := g.Save(context.Background(), "b1", auth.RoleAdministrador)
	if !rest.IsValidation(err) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if !g.Store().HasUnsavedChanges() {
		t.Error("failed save must leave the unsaved-changes flag set")
	}
}

func TestGateway_UploadRoleGate(t *testing.T) {
	fb := newFakeBackend(t)
	g := fb.gateway(t)

	_, err := g.Upload(context.Background(), "whatever.csv", auth.RoleFinanzas)
	if !errors.Is(err, ErrUploadNotAllowed) {
		t.Fatalf("expected ErrUploadNotAllowed, got %v", err)
	}
	if fb.uploads != 0 {
		t.Error("role gate must fire before any network call")
	}
}

func TestGateway_UploadExtensionGate(t *testing.T) {
	fb := newFakeBackend(t)
	g := fb.gateway(t)

	_, err := g.Upload(context.Background(), "datos.xlsx", auth.RoleCodificador)
	if err == nil {
		t.Fatal("expected an error for a non-csv file")
	}
	if fb.uploads != 0 {
		t.Error("extension gate must fire before any network call")
	}
}

func TestGateway_Upload(t *testing.T) {
	fb := newFakeBackend(t)
	g := fb.gateway(t)

	path := filepath.Join(t.TempDir(), "enero.csv")
	if err := os.WriteFile(path, []byte("episodioCmbd;sexo\nEP-001;F\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := g.Upload(context.Background(), path, auth.RoleCodificador)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.BatchID != "b2" || result.ProcessedRows != 10 || result.ErrorRows != 1 {
		t.Errorf("unexpected import result: %+v", result)
	}
	if fb.uploads != 1 {
		t.Errorf("expected 1 upload, got %d", fb.uploads)
	}
}
