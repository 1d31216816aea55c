package pricing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/grd/grdctl/internal/platform/auth"
	"github.com/grd/grdctl/internal/platform/rest"
)

type fakePricing struct {
	hasActive   bool
	activated   string
	calcCalls   int
	lastCalcURL string
	uploadDesc  string
	server      *httptest.Server
}

func newFakePricing(t *testing.T) *fakePricing {
	t.Helper()
	fp := &fakePricing{hasActive: true}

	e := echo.New()
	api := e.Group("/api/pricing")
	api.GET("/import/files", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"files": []map[string]interface{}{
					{
						"id": "p1", "filename": "tarifas-2025.xlsx", "status": "COMPLETED",
						"totalRows": 120, "processedRows": 120, "errorRows": 0, "isActive": true,
						"createdAt": "2025-01-01T00:00:00Z", "updatedAt": "2025-01-01T00:00:00Z",
						"_count": map[string]int{"tarifas": 120},
					},
				},
			},
		})
	})
	api.GET("/import/active", func(c echo.Context) error {
		if !fp.hasActive {
			return c.JSON(http.StatusNotFound, map[string]interface{}{"success": false, "message": "no hay archivo activo"})
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"id": "p1", "filename": "tarifas-2025.xlsx", "status": "COMPLETED", "isActive": true,
				"createdAt": "2025-01-01T00:00:00Z", "updatedAt": "2025-01-01T00:00:00Z",
			},
		})
	})
	api.GET("/import/files/:id/data", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"data": []map[string]interface{}{
					{"id": "t1", "convenioId": "FNS001", "tramo": nil, "precio": 2150000.0},
					{"convenioId": "dañada sin id"},
					{"id": "t2", "convenioId": "FNS012", "tramo": "T1", "precio": 1800000.0},
				},
			},
		})
	})
	api.PATCH("/import/files/:id/activate", func(c echo.Context) error {
		fp.activated = c.Param("id")
		return c.JSON(http.StatusOK, map[string]interface{}{"success": true})
	})
	api.POST("/import", func(c echo.Context) error {
		if _, err := c.FormFile("file"); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{"success": false, "message": "archivo no recibido"})
		}
		fp.uploadDesc = c.FormValue("description")
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    ImportResult{FileID: "p2", ProcessedRows: 120, ErrorRows: 0},
		})
	})
	api.GET("/calculate", func(c echo.Context) error {
		fp.calcCalls++
		fp.lastCalcURL = c.Request().URL.String()
		switch c.QueryParam("convenioId") {
		case "FNS001":
			return c.JSON(http.StatusOK, map[string]interface{}{
				"success": true,
				"data": map[string]interface{}{
					"convenioId": "FNS001", "tipo": TipoPrecioUnico, "valor": 2150000.0, "fuente": FuenteDB,
				},
			})
		case "FNS012":
			return c.JSON(http.StatusOK, map[string]interface{}{
				"success": true,
				"data": map[string]interface{}{
					"convenioId": "FNS012", "tipo": TipoPorTramos, "valor": 1800000.0, "fuente": FuenteAttachment,
					"tramoId": "T1",
					"tramo": map[string]interface{}{
						"id": "T1", "etiqueta": "0 - 1.5", "min": 0.0, "max": 1.5,
						"incluyeMin": true, "incluyeMax": false,
					},
				},
			})
		default:
			return c.JSON(http.StatusOK, map[string]interface{}{
				"success": false, "error": CodeConvenioNoDisponible,
			})
		}
	})

	fp.server = httptest.NewServer(e)
	t.Cleanup(fp.server.Close)
	return fp
}

func (fp *fakePricing) gateway(t *testing.T) *Gateway {
	t.Helper()
	client := rest.NewClient(fp.server.URL, 5*time.Second, auth.NewStaticTokenSource("tok"), zerolog.Nop())
	return NewGateway(client, 5)
}

func TestFilesAndTarifas(t *testing.T) {
	fp := newFakePricing(t)
	g := fp.gateway(t)
	ctx := context.Background()

	files, err := g.Files(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 1 || files[0].Count.Tarifas != 120 {
		t.Errorf("unexpected files: %+v", files)
	}

	tarifas, err := g.Tarifas(ctx, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tarifas) != 2 {
		t.Fatalf("expected 2 valid tarifas, got %d", len(tarifas))
	}
	if tarifas[0].Tramo != nil {
		t.Error("expected nil tramo for precio único tariff")
	}
	if tarifas[1].Tramo == nil || *tarifas[1].Tramo != "T1" {
		t.Errorf("expected tramo T1, got %v", tarifas[1].Tramo)
	}
}

func TestActiveFile(t *testing.T) {
	fp := newFakePricing(t)
	g := fp.gateway(t)

	active, err := g.ActiveFile(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if active == nil || active.ID != "p1" {
		t.Errorf("expected p1 active, got %+v", active)
	}
}

func TestActiveFile_NoneIsNotAnError(t *testing.T) {
	fp := newFakePricing(t)
	fp.hasActive = false
	g := fp.gateway(t)

	active, err := g.ActiveFile(context.Background())
	if err != nil {
		t.Fatalf("404 must not surface as an error, got %v", err)
	}
	if active != nil {
		t.Errorf("expected no active file, got %+v", active)
	}
}

func TestActivate(t *testing.T) {
	fp := newFakePricing(t)
	g := fp.gateway(t)

	if err := g.Activate(context.Background(), "p1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fp.activated != "p1" {
		t.Errorf("expected activation of p1, got %q", fp.activated)
	}
}

func TestUpload_CarriesDescription(t *testing.T) {
	fp := newFakePricing(t)
	g := fp.gateway(t)

	path := filepath.Join(t.TempDir(), "tarifas.csv")
	if err := os.WriteFile(path, []byte("convenioId;precio\nFNS001;2150000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := g.Upload(context.Background(), path, "Precios convenios GRD 2025", auth.RoleCodificador)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FileID != "p2" {
		t.Errorf("unexpected result: %+v", result)
	}
	if fp.uploadDesc != "Precios convenios GRD 2025" {
		t.Errorf("description did not reach the backend: %q", fp.uploadDesc)
	}
}

func TestCalculate_PrecioUnico(t *testing.T) {
	fp := newFakePricing(t)
	g := fp.gateway(t)

	precio, err := g.Calculate(context.Background(), "FNS001", 1.2, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if precio.Tipo != TipoPrecioUnico || precio.Valor != 2150000 || precio.Fuente != FuenteDB {
		t.Errorf("unexpected result: %+v", precio)
	}
	if precio.Tramo != nil {
		t.Error("precio único must not carry a tramo")
	}
}

func TestCalculate_PorTramos(t *testing.T) {
	fp := newFakePricing(t)
	g := fp.gateway(t)

	fecha := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	precio, err := g.Calculate(context.Background(), "FNS012", 1.2, fecha)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if precio.Tipo != TipoPorTramos || precio.TramoID != "T1" {
		t.Errorf("unexpected result: %+v", precio)
	}
	if precio.Tramo == nil || precio.Tramo.Max == nil || *precio.Tramo.Max != 1.5 {
		t.Errorf("unexpected tramo: %+v", precio.Tramo)
	}
}

func TestCalculate_QueryParameters(t *testing.T) {
	fp := newFakePricing(t)
	g := fp.gateway(t)

	fecha := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	if _, err := g.Calculate(context.Background(), "FNS012", 2.75, fecha); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"convenioId=FNS012", "pesoRelativo=2.75", "fechaReferencia=2025-06-15"} {
		if !strings.Contains(fp.lastCalcURL, want) {
			t.Errorf("expected %s in %s", want, fp.lastCalcURL)
		}
	}
}

func TestCalculate_BackendErrorCode(t *testing.T) {
	fp := newFakePricing(t)
	g := fp.gateway(t)

	_, err := g.Calculate(context.Background(), "FNS999", 1.0, time.Time{})
	var calcErr *CalcError
	if !errors.As(err, &calcErr) {
		t.Fatalf("expected CalcError, got %v", err)
	}
	if calcErr.Code != CodeConvenioNoDisponible {
		t.Errorf("expected CONVENIO_NO_DISPONIBLE, got %s", calcErr.Code)
	}
}

func TestCalculate_InvalidWeightNeverHitsNetwork(t *testing.T) {
	fp := newFakePricing(t)
	g := fp.gateway(t)

	_, err := g.Calculate(context.Background(), "FNS001", 0, time.Time{})
	var calcErr *CalcError
	if !errors.As(err, &calcErr) || calcErr.Code != CodePesoRelativoInvalido {
		t.Fatalf("expected PESO_RELATIVO_INVALIDO, got %v", err)
	}
	if fp.calcCalls != 0 {
		t.Errorf("expected no network call, got %d", fp.calcCalls)
	}
}
