// Package users manages the application's user directory and resolves the
// caller's own identity and role.
package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/grd/grdctl/internal/platform/auth"
	"github.com/grd/grdctl/internal/platform/rest"
)

const basePath = "/api/users"

// User is a directory entry. Role is one of the auth.Role* constants.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Payload carries the mutable user fields for create and update calls.
type Payload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Validate checks the payload before it goes on the wire.
func (p Payload) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if !strings.Contains(p.Email, "@") {
		return fmt.Errorf("invalid email %q", p.Email)
	}
	if !auth.IsKnownRole(p.Role) {
		return fmt.Errorf("unknown role %q", p.Role)
	}
	return nil
}

// Gateway talks to the user directory. Unlike the rest of the backend these
// endpoints respond with bare JSON, not the success envelope.
type Gateway struct {
	api *rest.Client
}

func NewGateway(api *rest.Client) *Gateway {
	return &Gateway{api: api}
}

// List returns all directory users.
func (g *Gateway) List(ctx context.Context) ([]User, error) {
	var out []User
	if err := g.api.Get(ctx, basePath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Me returns the directory record for the authenticated caller. The caller's
// role drives field-level edit permissions everywhere else.
func (g *Gateway) Me(ctx context.Context) (*User, error) {
	var out User
	if err := g.api.Get(ctx, basePath+"/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create adds a user and returns the stored record.
func (g *Gateway) Create(ctx context.Context, p Payload) (*User, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var out User
	if err := g.api.PostJSON(ctx, basePath, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces the mutable fields of the user with the given id.
func (g *Gateway) Update(ctx context.Context, id string, p Payload) (*User, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var out User
	if err := g.api.PutJSON(ctx, basePath+"/"+id, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes the user with the given id.
func (g *Gateway) Delete(ctx context.Context, id string) error {
	return g.api.Delete(ctx, basePath+"/"+id, nil)
}
