// Package audit reads the backend's audit trail: who imported, edited, or
// activated what, and when.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/grd/grdctl/internal/platform/rest"
	"github.com/grd/grdctl/pkg/pagination"
)

const basePath = "/api/audit"

// Actions the backend currently records.
const (
	ActionCodificationImportCompleted = "CODIFICATION_IMPORT_COMPLETED"
	ActionCodificationImportFailed    = "CODIFICATION_IMPORT_FAILED"
	ActionCodificationRowUpdated      = "CODIFICATION_ROW_UPDATED"
	ActionNormaImportCompleted        = "NORMA_IMPORT_COMPLETED"
	ActionNormaImportFailed           = "NORMA_IMPORT_FAILED"
	ActionNormaBatchActivated         = "NORMA_BATCH_ACTIVATED"
	ActionNormaBatchDeleted           = "NORMA_BATCH_DELETED"
)

// Log is one audit trail entry. Before, After and Metadata are arbitrary
// JSON documents whose shape depends on the action.
type Log struct {
	ID          string          `json:"id"`
	Action      string          `json:"action"`
	EntityType  string          `json:"entityType"`
	EntityID    string          `json:"entityId,omitempty"`
	UserID      string          `json:"userId,omitempty"`
	UserEmail   string          `json:"userEmail,omitempty"`
	UserName    string          `json:"userName,omitempty"`
	Description string          `json:"description,omitempty"`
	Before      json.RawMessage `json:"before,omitempty"`
	After       json.RawMessage `json:"after,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Filter narrows a log query. Zero fields are omitted from the request.
type Filter struct {
	UserEmail  string
	Action     string
	EntityType string
	EntityID   string
	From       time.Time
	To         time.Time
}

func (f Filter) query() url.Values {
	q := url.Values{}
	if f.UserEmail != "" {
		q.Set("userEmail", f.UserEmail)
	}
	if f.Action != "" {
		q.Set("action", f.Action)
	}
	if f.EntityType != "" {
		q.Set("entityType", f.EntityType)
	}
	if f.EntityID != "" {
		q.Set("entityId", f.EntityID)
	}
	if !f.From.IsZero() {
		q.Set("from", f.From.UTC().Format(time.RFC3339))
	}
	if !f.To.IsZero() {
		q.Set("to", f.To.UTC().Format(time.RFC3339))
	}
	return q
}

// Page is one page of audit logs plus the backend's pagination state.
type Page struct {
	Logs       []Log
	Pagination pagination.PageInfo
}

// Gateway queries the audit trail.
type Gateway struct {
	api *rest.Client
}

func NewGateway(api *rest.Client) *Gateway {
	return &Gateway{api: api}
}

type logsEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Logs       []Log               `json:"logs"`
		Pagination pagination.PageInfo `json:"pagination"`
	} `json:"data"`
}

// Logs returns one page of audit entries matching the filter, newest first.
func (g *Gateway) Logs(ctx context.Context, filter Filter, p pagination.Params) (*Page, error) {
	q := filter.query()
	p.Apply(q)

	var out logsEnvelope
	if err := g.api.Get(ctx, basePath+"/logs", q, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		if out.Message == "" {
			return nil, fmt.Errorf("fetching audit logs: backend reported failure")
		}
		return nil, fmt.Errorf("fetching audit logs: %s", out.Message)
	}
	return &Page{Logs: out.Data.Logs, Pagination: out.Data.Pagination}, nil
}
