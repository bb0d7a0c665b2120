// Package auth verifies bearer tokens and maps them to dashboard principals.
package auth

import (
	"crypto"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Roles known to the dashboard. Unknown roles are treated as rep.
const (
	RoleAdmin = "admin"
	RoleRep   = "rep"
)

var (
	ErrExpired      = errors.New("token expired")
	ErrNotYetValid  = errors.New("token not yet valid")
	ErrBadSignature = errors.New("bad signature")
)

// clock skew tolerated on exp and nbf
const leeway = 30 * time.Second

type Principal struct {
	Tenant string
	Role   string
	RepID  string
}

// Verifier validates bearer tokens and extracts tenant, role and sales rep claims.
// Modes: dev (tenant:role[:rep] tokens, no verification), hmac (HS256),
// jwks (RS256 with keys from AUTH_JWKS_URL).
type Verifier struct {
	Mode        string
	HMACSecret  []byte
	JWKSURL     string
	TenantClaim string
	RoleClaim   string
	RepClaim    string

	http     *http.Client
	cacheTTL time.Duration
	now      func() time.Time

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey // kid -> key
	lastFetch time.Time
}

// NormalizeRole maps claim values onto RoleAdmin or RoleRep.
func NormalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleAdmin, "administrator", "superadmin":
		return RoleAdmin
	default:
		return RoleRep
	}
}

func NewVerifierFromEnv() *Verifier {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv("AUTH_MODE")))
	if mode == "" {
		mode = "dev"
	}
	return &Verifier{
		Mode:        mode,
		HMACSecret:  []byte(os.Getenv("AUTH_HMAC_SECRET")),
		JWKSURL:     os.Getenv("AUTH_JWKS_URL"),
		TenantClaim: envOr("AUTH_TENANT_CLAIM", "tenant"),
		RoleClaim:   envOr("AUTH_ROLE_CLAIM", "role"),
		RepClaim:    envOr("AUTH_REP_CLAIM", "sub"),
		http:        &http.Client{Timeout: 5 * time.Second},
		cacheTTL:    10 * time.Minute,
	}
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func (v *Verifier) clock() time.Time {
	if v.now != nil {
		return v.now()
	}
	return time.Now()
}

func (v *Verifier) Verify(token string) (Principal, error) {
	if v.Mode == "dev" {
		return devPrincipal(token)
	}
	jwt, err := parseJWT(token)
	if err != nil {
		return Principal{}, err
	}
	switch v.Mode {
	case "hmac":
		if jwt.Alg != "HS256" {
			return Principal{}, fmt.Errorf("alg %q not accepted in hmac mode", jwt.Alg)
		}
		mac := hmac.New(sha256.New, v.HMACSecret)
		mac.Write(jwt.signed)
		if !hmac.Equal(mac.Sum(nil), jwt.sig) {
			return Principal{}, ErrBadSignature
		}
	case "jwks":
		if jwt.Alg != "RS256" {
			return Principal{}, fmt.Errorf("alg %q not accepted in jwks mode", jwt.Alg)
		}
		pub, err := v.publicKey(jwt.Kid)
		if err != nil {
			return Principal{}, err
		}
		h := sha256.Sum256(jwt.signed)
		if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, h[:], jwt.sig); err != nil {
			return Principal{}, ErrBadSignature
		}
	default:
		return Principal{}, fmt.Errorf("unsupported auth mode %q", v.Mode)
	}
	return v.principal(jwt.Claims)
}

// devPrincipal reads tokens of the form tenant:role[:rep].
func devPrincipal(token string) (Principal, error) {
	parts := strings.SplitN(token, ":", 3)
	if len(parts) < 2 || parts[0] == "" {
		return Principal{}, errors.New("invalid dev token; expected tenant:role[:rep]")
	}
	p := Principal{Tenant: parts[0], Role: NormalizeRole(parts[1])}
	if len(parts) == 3 {
		p.RepID = parts[2]
	}
	return p, nil
}

type jwtToken struct {
	Alg    string `json:"alg"`
	Kid    string `json:"kid"`
	Claims map[string]any `json:"-"`
	signed []byte
	sig    []byte
}

func parseJWT(token string) (jwtToken, error) {
	segs := strings.Split(token, ".")
	if len(segs) != 3 {
		return jwtToken{}, errors.New("invalid JWT")
	}
	var t jwtToken
	if err := decodeSegment(segs[0], &t); err != nil {
		return jwtToken{}, fmt.Errorf("jwt header: %w", err)
	}
	if err := decodeSegment(segs[1], &t.Claims); err != nil {
		return jwtToken{}, fmt.Errorf("jwt claims: %w", err)
	}
	sig, err := base64.RawURLEncoding.DecodeString(segs[2])
	if err != nil {
		return jwtToken{}, fmt.Errorf("jwt signature: %w", err)
	}
	t.signed = []byte(segs[0] + "." + segs[1])
	t.sig = sig
	return t, nil
}

func decodeSegment(seg string, v any) error {
	b, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func (v *Verifier) principal(claims map[string]any) (Principal, error) {
	now := v.clock()
	if exp, ok := claims["exp"].(float64); ok && now.After(time.Unix(int64(exp), 0).Add(leeway)) {
		return Principal{}, ErrExpired
	}
	if nbf, ok := claims["nbf"].(float64); ok && now.Add(leeway).Before(time.Unix(int64(nbf), 0)) {
		return Principal{}, ErrNotYetValid
	}
	tenant := claimString(claims[v.TenantClaim])
	if tenant == "" {
		return Principal{}, fmt.Errorf("missing %s claim", v.TenantClaim)
	}
	return Principal{Tenant: tenant, Role: roleClaim(claims[v.RoleClaim]), RepID: claimString(claims[v.RepClaim])}, nil
}

// claimString accepts string and numeric claims; numeric subjects are common for CRM user ids.
func claimString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

// roleClaim takes a single role or a list; admin anywhere in the list wins.
func roleClaim(v any) string {
	list, ok := v.([]any)
	if !ok {
		return NormalizeRole(claimString(v))
	}
	for _, r := range list {
		if NormalizeRole(claimString(r)) == RoleAdmin {
			return RoleAdmin
		}
	}
	return RoleRep
}

// publicKey looks kid up in the cached JWKS, refetching when the cache is
// stale or the kid is unknown (key rotation). Unknown-kid refetches are
// limited to one per minute.
func (v *Verifier) publicKey(kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	age := time.Since(v.lastFetch)
	v.mu.RUnlock()
	if ok && age <= v.cacheTTL {
		return key, nil
	}
	if ok || age > time.Minute {
		if err := v.fetchJWKS(); err != nil {
			if ok {
				return key, nil
			}
			return nil, err
		}
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	if key, ok := v.keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("kid %q not found in JWKS", kid)
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (v *Verifier) fetchJWKS() error {
	if v.JWKSURL == "" {
		return errors.New("AUTH_JWKS_URL not set")
	}
	client := v.http
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Get(v.JWKSURL)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks fetch: %s", resp.Status)
	}
	var set struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return err
	}
	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if !strings.EqualFold(k.Kty, "RSA") {
			continue
		}
		pub, err := rsaKey(k)
		if err != nil {
			return fmt.Errorf("jwks kid %q: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}
	v.mu.Lock()
	v.keys = keys
	v.lastFetch = time.Now()
	v.mu.Unlock()
	return nil
}

func rsaKey(k jwk) (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, err
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, err
	}
	exp := new(big.Int).SetBytes(e)
	if !exp.IsInt64() || exp.Int64() > 1<<31-1 {
		return nil, errors.New("exponent too large")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exp.Int64())}, nil
}
