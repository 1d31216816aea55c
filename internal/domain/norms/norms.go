// Package norms manages GRD/FONASA norm tables: CSV imports, the file
// catalog, per-file rows, and the single-active-file switch that drives
// downstream pricing.
package norms

import (
	"context"
	"fmt"
	"time"

	"github.com/grd/grdctl/internal/platform/auth"
	"github.com/grd/grdctl/internal/platform/rest"
	"github.com/grd/grdctl/internal/platform/upload"
)

const basePath = "/api/norms"

// Norm table origins.
const (
	TypeGRD    = "GRD"
	TypeFONASA = "FONASA"
	TypeCustom = "CUSTOM"
)

// File is one imported norm table and its processing state.
type File struct {
	ID            string     `json:"id"`
	Filename      string     `json:"filename"`
	Status        string     `json:"status"`
	TotalRows     int        `json:"totalRows"`
	ProcessedRows int        `json:"processedRows"`
	ErrorRows     int        `json:"errorRows"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	IsActive      bool       `json:"isActive"`
	NormType      string     `json:"normType"`
	Version       string     `json:"version"`
	Description   string     `json:"description,omitempty"`
	Count         struct {
		NormRows int `json:"normRows"`
	} `json:"_count"`
}

// Row is one norm entry inside a file.
type Row struct {
	ID               string     `json:"id"`
	NormFileID       string     `json:"normFileId"`
	Codigo           string     `json:"codigo"`
	Descripcion      string     `json:"descripcion"`
	Categoria        string     `json:"categoria,omitempty"`
	Subcategoria     string     `json:"subcategoria,omitempty"`
	Valor            *float64   `json:"valor,omitempty"`
	Unidad           string     `json:"unidad,omitempty"`
	FechaVigencia    *time.Time `json:"fechaVigencia,omitempty"`
	FechaVencimiento *time.Time `json:"fechaVencimiento,omitempty"`
	Activo           bool       `json:"activo"`
}

// ImportResult summarizes a finished norm file import.
type ImportResult struct {
	NormFileID    string `json:"normFileId"`
	ProcessedRows int    `json:"processedRows"`
	ErrorRows     int    `json:"errorRows"`
}

// Gateway talks to the norms area of the backend.
type Gateway struct {
	api     *rest.Client
	preflit upload.Preflight
}

func NewGateway(api *rest.Client, maxUploadMB int) *Gateway {
	return &Gateway{
		api:     api,
		preflit: upload.Preflight{Extensions: []string{".csv"}, MaxBytes: int64(maxUploadMB) * 1024 * 1024},
	}
}

type filesEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		NormFiles []File `json:"normFiles"`
	} `json:"data"`
}

type rowsEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		NormRows []Row `json:"normRows"`
	} `json:"data"`
}

type statusEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type importEnvelope struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    ImportResult `json:"data"`
}

// Files lists the imported norm files, active one included.
func (g *Gateway) Files(ctx context.Context) ([]File, error) {
	var out filesEnvelope
	if err := g.api.Get(ctx, basePath+"/files", nil, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, envelopeError("listing norm files", out.Message)
	}
	return out.Data.NormFiles, nil
}

// ActiveFile returns the currently active norm file, or nil when none is set.
func (g *Gateway) ActiveFile(ctx context.Context) (*File, error) {
	files, err := g.Files(ctx)
	if err != nil {
		return nil, err
	}
	for i := range files {
		if files[i].IsActive {
			return &files[i], nil
		}
	}
	return nil, nil
}

// Rows returns the norm rows of the given file, dropping malformed entries
// without an id, which partial imports have been seen to produce.
func (g *Gateway) Rows(ctx context.Context, fileID string) ([]Row, error) {
	var out rowsEnvelope
	if err := g.api.Get(ctx, basePath+"/files/"+fileID+"/rows", nil, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, envelopeError("fetching norm rows", out.Message)
	}
	rows := out.Data.NormRows[:0]
	for _, r := range out.Data.NormRows {
		if r.ID != "" {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

// SetActive marks the given file as the active norm table. Exactly one file
// is active at a time; activation deactivates the previous one server-side.
func (g *Gateway) SetActive(ctx context.Context, fileID string) error {
	var out statusEnvelope
	if err := g.api.PostJSON(ctx, basePath+"/files/"+fileID+"/set-active", nil, &out); err != nil {
		return err
	}
	if !out.Success {
		return envelopeError("activating norm file", out.Message)
	}
	return nil
}

// Upload imports a norm CSV. Role, extension, and size are checked before
// any bytes move.
func (g *Gateway) Upload(ctx context.Context, path, role string) (*ImportResult, error) {
	if !auth.CanUpload(role) {
		return nil, fmt.Errorf("role %s is not allowed to upload norm files", role)
	}
	f, err := g.preflit.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out importEnvelope
	if err := g.api.Upload(ctx, basePath+"/upload", "file", path, f, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, envelopeError("importing norm file", out.Message)
	}
	return &out.Data, nil
}

func envelopeError(op, message string) error {
	if message == "" {
		return fmt.Errorf("%s: backend reported failure", op)
	}
	return fmt.Errorf("%s: %s", op, message)
}

// HasData reports whether the file finished processing with usable rows.
func (f File) HasData() bool {
	return f.Status == "COMPLETED" || f.Status == "PARTIALLY_COMPLETED"
}
