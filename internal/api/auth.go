// Package api implements HTTP handlers and helpers for the sales dashboard.
package api

import (
    "errors"
    "fmt"
    "net/http"
    "strings"

    "salesops/internal/auth"
)

type Principal struct {
	Tenant string
	Role   string // admin, rep
	RepID  string
}

const defaultTenant = "t_demo"

var errUnauthenticated = errors.New("valid bearer token required")

// getPrincipal extracts tenant and role from a bearer token or, in dev mode, headers.
// - dev (or no verifier): a dev token when present, else X-Tenant-Id/X-Role/X-Rep-Id.
// - hmac/jwks: the token must verify; headers are ignored.
func (s *Server) getPrincipal(r *http.Request) (Principal, error) {
    authz := r.Header.Get("Authorization")
    hasBearer := strings.HasPrefix(strings.ToLower(authz), "bearer ")
    if hasBearer && s.Auth != nil {
        tok := strings.TrimSpace(authz[len("Bearer "):])
        pr, err := s.Auth.Verify(tok)
        if err == nil {
            return Principal{Tenant: normalizeTenantID(pr.Tenant), Role: pr.Role, RepID: pr.RepID}, nil
        }
        if s.Auth.Mode != "dev" { return Principal{}, fmt.Errorf("%w: %v", errUnauthenticated, err) }
    }
    if s.Auth != nil && s.Auth.Mode != "dev" { return Principal{}, errUnauthenticated }
    role := auth.RoleAdmin
    if v := r.Header.Get("X-Role"); v != "" { role = auth.NormalizeRole(v) }
    return Principal{
        Tenant: normalizeTenantID(r.Header.Get("X-Tenant-Id")),
        Role:   role,
        RepID:  strings.TrimSpace(r.Header.Get("X-Rep-Id")),
    }, nil
}

// principal resolves the caller or answers 401.
func (s *Server) principal(w http.ResponseWriter, r *http.Request) (Principal, bool) {
    p, err := s.getPrincipal(r)
    if err != nil {
        w.Header().Set("WWW-Authenticate", `Bearer realm="salesops"`)
        writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
        return Principal{}, false
    }
    return p, true
}

// normalizeTenantID trims and lowercases tenant ids so header and token
// spellings address the same rows.
func normalizeTenantID(t string) string {
    t = strings.ToLower(strings.TrimSpace(t))
    if t == "" { return defaultTenant }
    return t
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == auth.RoleAdmin }

// Actor names the principal in the audit log.
func (p Principal) Actor() string {
    if p.RepID != "" { return p.Role + ":" + p.RepID }
    return p.Role
}
