// Package reports reads the backend's aggregated statistics: entity counts,
// GRD/convenio/demographic distributions, calculation summaries, recent
// activity, and the monthly import trend.
package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/grd/grdctl/internal/platform/rest"
)

const basePath = "/api/reportes"

// Overview is the backend-wide entity census.
type Overview struct {
	TotalEpisodios     int `json:"totalEpisodios"`
	TotalImportBatches int `json:"totalImportBatches"`
	TotalNormaFiles    int `json:"totalNormaFiles"`
	TotalPricingFiles  int `json:"totalPricingFiles"`
	TotalAjustesFiles  int `json:"totalAjustesFiles"`
	TotalCalculos      int `json:"totalCalculos"`
	TotalAuditorias    int `json:"totalAuditorias"`
}

// GRDCount is one bucket of the episode-per-GRD distribution.
type GRDCount struct {
	GRD      string `json:"grd"`
	Cantidad int    `json:"cantidad"`
}

// ConvenioCount is one bucket of the episode-per-convenio distribution.
type ConvenioCount struct {
	Convenio string `json:"convenio"`
	Cantidad int    `json:"cantidad"`
}

// AgeCount is one bucket of the age-range distribution.
type AgeCount struct {
	Rango    string `json:"rango"`
	Cantidad int    `json:"cantidad"`
}

// SexCount is one bucket of the sex distribution.
type SexCount struct {
	Sexo     string `json:"sexo"`
	Cantidad int    `json:"cantidad"`
}

// CalcStats summarizes the precio base calculations run so far.
type CalcStats struct {
	TotalCalculos       int             `json:"totalCalculos"`
	CalculosPorConvenio []ConvenioCount `json:"calculosPorConvenio"`
	PromedioTotalFinal  float64         `json:"promedioTotalFinal"`
}

// Activity is one recent audit-trail entry as the dashboard shows it.
type Activity struct {
	ID          string    `json:"id"`
	Action      string    `json:"action"`
	EntityType  string    `json:"entityType"`
	UserEmail   string    `json:"userEmail,omitempty"`
	UserName    string    `json:"userName,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TrendPoint is one month of the import trend.
type TrendPoint struct {
	Mes       string `json:"mes"`
	Cantidad  int    `json:"cantidad"`
	TotalRows int    `json:"totalRows"`
}

// Gateway queries the reporting area of the backend. Unlike the other areas,
// the payload here sits directly under "data" with no keyed wrapper.
type Gateway struct {
	api *rest.Client
}

func NewGateway(api *rest.Client) *Gateway {
	return &Gateway{api: api}
}

type reportEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// get fetches one report endpoint and decodes its data payload into out.
func (g *Gateway) get(ctx context.Context, path string, query url.Values, op string, out interface{}) error {
	var env reportEnvelope
	if err := g.api.Get(ctx, basePath+path, query, &env); err != nil {
		return err
	}
	if !env.Success {
		if env.Message == "" {
			return fmt.Errorf("%s: backend reported failure", op)
		}
		return fmt.Errorf("%s: %s", op, env.Message)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s: decoding payload: %w", op, err)
	}
	return nil
}

func limitQuery(limit int) url.Values {
	if limit <= 0 {
		return nil
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	return q
}

// Overview returns the backend-wide entity counts.
func (g *Gateway) Overview(ctx context.Context) (*Overview, error) {
	var out Overview
	if err := g.get(ctx, "/estadisticas-generales", nil, "fetching overview", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GRDDistribution returns the top GRD codes by episode count.
func (g *Gateway) GRDDistribution(ctx context.Context, limit int) ([]GRDCount, error) {
	var out []GRDCount
	if err := g.get(ctx, "/distribucion-grd", limitQuery(limit), "fetching GRD distribution", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ConvenioDistribution returns the top convenios by episode count.
func (g *Gateway) ConvenioDistribution(ctx context.Context, limit int) ([]ConvenioCount, error) {
	var out []ConvenioCount
	if err := g.get(ctx, "/distribucion-convenio", limitQuery(limit), "fetching convenio distribution", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AgeDistribution returns the episode count per age range.
func (g *Gateway) AgeDistribution(ctx context.Context) ([]AgeCount, error) {
	var out []AgeCount
	if err := g.get(ctx, "/distribucion-edad", nil, "fetching age distribution", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SexDistribution returns the episode count per sex.
func (g *Gateway) SexDistribution(ctx context.Context) ([]SexCount, error) {
	var out []SexCount
	if err := g.get(ctx, "/distribucion-sexo", nil, "fetching sex distribution", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CalcStats returns the precio base calculation summary.
func (g *Gateway) CalcStats(ctx context.Context) (*CalcStats, error) {
	var out CalcStats
	if err := g.get(ctx, "/estadisticas-calculos", nil, "fetching calculation stats", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecentActivity returns the latest audit entries, newest first.
func (g *Gateway) RecentActivity(ctx context.Context, limit int) ([]Activity, error) {
	var out []Activity
	if err := g.get(ctx, "/actividad-reciente", limitQuery(limit), "fetching recent activity", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ImportTrend returns the per-month import counts.
func (g *Gateway) ImportTrend(ctx context.Context) ([]TrendPoint, error) {
	var out []TrendPoint
	if err := g.get(ctx, "/tendencia-importaciones", nil, "fetching import trend", &out); err != nil {
		return nil, err
	}
	return out, nil
}
