// Package pricing manages convenio tariff files and precio base calculation.
// A convenio prices either with a single tariff (PRECIO_UNICO) or by weight
// bracket (POR_TRAMOS, convenios FNS012/FNS026).
package pricing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/grd/grdctl/internal/platform/auth"
	"github.com/grd/grdctl/internal/platform/rest"
	"github.com/grd/grdctl/internal/platform/upload"
)

const basePath = "/api/pricing"

// Pricing modes.
const (
	TipoPrecioUnico = "PRECIO_UNICO"
	TipoPorTramos   = "POR_TRAMOS"
)

// Tariff sources.
const (
	FuenteDB         = "db"
	FuenteAttachment = "attachment"
)

// Backend error codes for precio base calculation.
const (
	CodeConvenioNoDisponible    = "CONVENIO_NO_DISPONIBLE"
	CodePesoRelativoInvalido    = "PESO_RELATIVO_INVALIDO"
	CodeTarifaFueraDeVigencia   = "TARIFA_FUERA_DE_VIGENCIA"
	CodeTarifaSourceUnavailable = "TARIFA_SOURCE_UNAVAILABLE"
)

// CalcError is a domain rejection from the precio base calculator.
type CalcError struct {
	Code    string
	Message string
}

func (e *CalcError) Error() string {
	switch e.Code {
	case CodeConvenioNoDisponible:
		return "no hay tarifas para el convenio solicitado"
	case CodePesoRelativoInvalido:
		return "el peso relativo debe ser un número mayor que 0"
	case CodeTarifaFueraDeVigencia:
		return "no hay tarifas vigentes para la fecha especificada"
	case CodeTarifaSourceUnavailable:
		return "no hay archivo de tarifas activo configurado"
	}
	if e.Message != "" {
		return e.Message
	}
	return "error al calcular el precio base"
}

// File is one imported tariff file.
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
		Tarifas int `json:"tarifas"`
	} `json:"_count"`
}

// Tarifa is one priced convenio entry, optionally bracketed.
type Tarifa struct {
	ID                string  `json:"id"`
	ConvenioID        string  `json:"convenioId"`
	Descripcion       string  `json:"descripcion,omitempty"`
	Tramo             *string `json:"tramo"`
	Precio            float64 `json:"precio"`
	FechaAdmision     string  `json:"fechaAdmision,omitempty"`
	FechaFin          string  `json:"fechaFin,omitempty"`
	TipoConvenio      string  `json:"tipoConvenio,omitempty"`
	TipoAseguradora   string  `json:"tipoAseguradora,omitempty"`
	AseguradoraCodigo string  `json:"aseguradoraCodigo,omitempty"`
	AseguradoraNombre string  `json:"aseguradoraNombre,omitempty"`
}

// Tramo describes the weight bracket a calculation landed in.
type Tramo struct {
	ID         string   `json:"id"`
	Etiqueta   string   `json:"etiqueta"`
	Min        float64  `json:"min"`
	Max        *float64 `json:"max,omitempty"`
	IncluyeMin bool     `json:"incluyeMin"`
	IncluyeMax bool     `json:"incluyeMax"`
}

// PrecioBase is a calculated base price for a convenio and relative weight.
type PrecioBase struct {
	ConvenioID string  `json:"convenioId"`
	Tipo       string  `json:"tipo"`
	Valor      float64 `json:"valor"`
	Fuente     string  `json:"fuente"`
	Tramo      *Tramo  `json:"tramo,omitempty"`
	TramoID    string  `json:"tramoId,omitempty"`
	Vigencia   *struct {
		Desde string `json:"desde,omitempty"`
		Hasta string `json:"hasta,omitempty"`
	} `json:"vigencia,omitempty"`
}

// ImportResult summarizes a finished tariff import.
type ImportResult struct {
	FileID        string `json:"fileId"`
	ProcessedRows int    `json:"processedRows"`
	ErrorRows     int    `json:"errorRows"`
}

// Gateway talks to the pricing area of the backend.
type Gateway struct {
	api     *rest.Client
	preflit upload.Preflight
}

func NewGateway(api *rest.Client, maxUploadMB int) *Gateway {
	return &Gateway{
		api:     api,
		preflit: upload.Preflight{Extensions: []string{".csv", ".xlsx", ".xls"}, MaxBytes: int64(maxUploadMB) * 1024 * 1024},
	}
}

type filesEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Files []File `json:"files"`
	} `json:"data"`
}

type fileEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    *File  `json:"data"`
}

type dataEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Data []Tarifa `json:"data"`
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

type calcEnvelope struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Data    *PrecioBase `json:"data"`
}

// Files lists the imported tariff files.
func (g *Gateway) Files(ctx context.Context) ([]File, error) {
	var out filesEnvelope
	if err := g.api.Get(ctx, basePath+"/import/files", nil, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, envelopeError("listing tariff files", out.Message)
	}
	return out.Data.Files, nil
}

// ActiveFile returns the active tariff file, or nil when none is configured.
// The backend answers 404 for the no-active-file case; that is not an error.
func (g *Gateway) ActiveFile(ctx context.Context) (*File, error) {
	var out fileEnvelope
	err := g.api.Get(ctx, basePath+"/import/active", nil, &out)
	if err != nil {
		var restErr *rest.Error
		if errors.As(err, &restErr) && restErr.Status == 404 {
			return nil, nil
		}
		return nil, err
	}
	if !out.Success {
		return nil, nil
	}
	return out.Data, nil
}

// Tarifas returns the tariff rows of the given file, dropping malformed
// entries without an id.
func (g *Gateway) Tarifas(ctx context.Context, fileID string) ([]Tarifa, error) {
	var out dataEnvelope
	if err := g.api.Get(ctx, basePath+"/import/files/"+fileID+"/data", nil, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, envelopeError("fetching tariffs", out.Message)
	}
	tarifas := out.Data.Data[:0]
	for _, t := range out.Data.Data {
		if t.ID != "" {
			tarifas = append(tarifas, t)
		}
	}
	return tarifas, nil
}

// Activate marks the given tariff file as active.
func (g *Gateway) Activate(ctx context.Context, fileID string) error {
	var out statusEnvelope
	if err := g.api.PatchJSON(ctx, basePath+"/import/files/"+fileID+"/activate", nil, &out); err != nil {
		return err
	}
	if !out.Success {
		return envelopeError("activating tariff file", out.Message)
	}
	return nil
}

// Upload imports a tariff file (CSV or Excel) with an optional description.
func (g *Gateway) Upload(ctx context.Context, path, description, role string) (*ImportResult, error) {
	if !auth.CanUpload(role) {
		return nil, fmt.Errorf("role %s is not allowed to upload tariff files", role)
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
	if err := g.api.UploadForm(ctx, basePath+"/import", "file", path, f, fields, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, envelopeError("importing tariff file", out.Message)
	}
	return &out.Data, nil
}

// Calculate asks the backend for the precio base of a convenio at the given
// relative weight, optionally as of a reference date. The weight is checked
// locally first so an obviously invalid input never hits the network.
func (g *Gateway) Calculate(ctx context.Context, convenioID string, pesoRelativo float64, fechaReferencia time.Time) (*PrecioBase, error) {
	if pesoRelativo <= 0 {
		return nil, &CalcError{Code: CodePesoRelativoInvalido}
	}

	q := url.Values{}
	q.Set("convenioId", convenioID)
	q.Set("pesoRelativo", strconv.FormatFloat(pesoRelativo, 'f', -1, 64))
	if !fechaReferencia.IsZero() {
		q.Set("fechaReferencia", fechaReferencia.Format("2006-01-02"))
	}

	var out calcEnvelope
	if err := g.api.Get(ctx, basePath+"/calculate", q, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &CalcError{Code: out.Error, Message: out.Message}
	}
	if out.Data == nil {
		return nil, fmt.Errorf("calculating precio base: empty response")
	}
	return out.Data, nil
}

func envelopeError(op, message string) error {
	if message == "" {
		return fmt.Errorf("%s: backend reported failure", op)
	}
	return fmt.Errorf("%s: %s", op, message)
}
