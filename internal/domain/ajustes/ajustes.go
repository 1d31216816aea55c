// Package ajustes manages "ajustes por tecnología" files: Excel imports of
// per-code adjustment amounts applied on top of GRD pricing.
package ajustes

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/grd/grdctl/internal/platform/auth"
	"github.com/grd/grdctl/internal/platform/rest"
	"github.com/grd/grdctl/internal/platform/upload"
)

const basePath = "/api/ajustes"

// File is one imported adjustments file.
type File struct {
	ID            string     `json:"id"`
	Filename      string     `json:"filename"`
	Description   string     `json:"description,omitempty"`
	Status        string     `json:"status"`
	TotalRows     int        `json:"totalRows"`
	ProcessedRows int        `json:"processedRows"`
	ErrorRows     int        `json:"errorRows"`
	IsActive      bool       `json:"isActive"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	Count         struct {
		Data int `json:"data"`
	} `json:"_count"`
}

// Row is one adjustment entry. RawData preserves the original spreadsheet
// columns the importer did not map.
type Row struct {
	ID          string          `json:"id"`
	FileID      string          `json:"fileId"`
	Codigo      string          `json:"codigo"`
	Descripcion string          `json:"descripcion,omitempty"`
	Monto       float64         `json:"monto"`
	RawData     json.RawMessage `json:"rawData,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// ImportResult summarizes a finished adjustments import.
type ImportResult struct {
	FileID        string `json:"fileId"`
	ProcessedRows int    `json:"processedRows"`
	ErrorRows     int    `json:"errorRows"`
}

// Gateway talks to the ajustes area of the backend.
type Gateway struct {
	api     *rest.Client
	preflit upload.Preflight
}

func NewGateway(api *rest.Client, maxUploadMB int) *Gateway {
	return &Gateway{
		api:     api,
		preflit: upload.Preflight{Extensions: []string{".xlsx", ".xls"}, MaxBytes: int64(maxUploadMB) * 1024 * 1024},
	}
}

type filesEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Files []File `json:"files"`
	} `json:"data"`
}

type dataEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Data []Row `json:"data"`
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

// Files lists the imported adjustments files.
func (g *Gateway) Files(ctx context.Context) ([]File, error) {
	var out filesEnvelope
	if err := g.api.Get(ctx, basePath+"/import/files", nil, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, envelopeError("listing adjustment files", out.Message)
	}
	return out.Data.Files, nil
}

// Rows returns the adjustment rows of the given file.
func (g *Gateway) Rows(ctx context.Context, fileID string) ([]Row, error) {
	var out dataEnvelope
	if err := g.api.Get(ctx, basePath+"/import/files/"+fileID+"/data", nil, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, envelopeError("fetching adjustment rows", out.Message)
	}
	rows := out.Data.Data[:0]
	for _, r := range out.Data.Data {
		if r.ID != "" {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

// Activate marks the given adjustments file as active.
func (g *Gateway) Activate(ctx context.Context, fileID string) error {
	var out statusEnvelope
	if err := g.api.PatchJSON(ctx, basePath+"/import/files/"+fileID+"/activate", nil, &out); err != nil {
		return err
	}
	if !out.Success {
		return envelopeError("activating adjustment file", out.Message)
	}
	return nil
}

// Upload imports an adjustments Excel file with an optional description.
func (g *Gateway) Upload(ctx context.Context, path, description, role string) (*ImportResult, error) {
	if !auth.CanUpload(role) {
		return nil, fmt.Errorf("role %s is not allowed to upload adjustment files", role)
	}
	f, err := g.preflit.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var fields map[string]string
	if description != "" {
		fields = map[string]string{"description": description}
	}
	var out importEnvelope
	if err := g.api.UploadForm(ctx, basePath+"/import/excel", "file", path, f, fields, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, envelopeError("importing adjustment file", out.Message)
	}
	return &out.Data, nil
}

func envelopeError(op, message string) error {
	if message == "" {
		return fmt.Errorf("%s: backend reported failure", op)
	}
	return fmt.Errorf("%s: %s", op, message)
}
