// Package authresolver parses Bearer/ApiKey/Basic credentials from an HTTP
// or WebDAV request into an AuthResult.
package authresolver

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	gwerr "github.com/sabouaram/storegate/internal/gwerrors"
	"github.com/sabouaram/storegate/internal/gwtypes"
)

// PrincipalStore is the subset of internal/metastore the resolver needs:
// admin token comparison and API key lookup with lazy-expiry deletion.
type PrincipalStore interface {
	AdminToken() string
	LookupApiKey(ctx context.Context, key string) (gwtypes.Principal, bool, error)
	DeleteExpiredApiKey(ctx context.Context, principalID string) error
	TouchApiKey(ctx context.Context, principalID string, at time.Time) error
}

// Resolver evaluates request credentials against a PrincipalStore.
type Resolver struct {
	store PrincipalStore
	now   func() time.Time
}

// New constructs a Resolver.
func New(store PrincipalStore) *Resolver {
	return &Resolver{store: store, now: time.Now}
}

// Resolve parses the Authorization header value and returns an AuthResult.
// It accepts "Bearer <admin-token>", "ApiKey <key>", and
// "Basic <base64(user:pass)>" where username==password is treated as an API
// key and the admin username+password pair authenticates as admin.
func (r *Resolver) Resolve(ctx context.Context, authHeader string) (gwtypes.AuthResult, error) {
	if authHeader == "" {
		return gwtypes.AuthResult{AuthType: gwtypes.AuthNone}, nil
	}

	scheme, value, ok := splitAuthHeader(authHeader)
	if !ok {
		return gwtypes.AuthResult{}, gwerr.New(gwerr.Unauthorized, "malformed Authorization header")
	}

	switch strings.ToLower(scheme) {
	case "bearer":
		return r.resolveToken(ctx, value)
	case "apikey":
		return r.resolveApiKey(ctx, value)
	case "basic":
		return r.resolveBasic(ctx, value)
	default:
		return gwtypes.AuthResult{}, gwerr.New(gwerr.Unauthorized, "unsupported auth scheme %s", scheme)
	}
}

func splitAuthHeader(h string) (scheme, value string, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(h), " ", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], strings.TrimSpace(parts[1]), true
}

func (r *Resolver) resolveToken(ctx context.Context, token string) (gwtypes.AuthResult, error) {
	if token == r.store.AdminToken() && token != "" {
		return adminResult(), nil
	}
	return r.resolveApiKey(ctx, token)
}

func (r *Resolver) resolveApiKey(ctx context.Context, key string) (gwtypes.AuthResult, error) {
	p, found, err := r.store.LookupApiKey(ctx, key)
	if err != nil {
		return gwtypes.AuthResult{}, err
	}
	if !found {
		return gwtypes.AuthResult{}, gwerr.New(gwerr.Unauthorized, "invalid api key")
	}

	now := r.now()
	if p.Expired(now) {
		_ = r.store.DeleteExpiredApiKey(ctx, p.ID)
		return gwtypes.AuthResult{}, gwerr.New(gwerr.Unauthorized, "api key expired")
	}

	_ = r.store.TouchApiKey(ctx, p.ID, now)

	return gwtypes.AuthResult{
		Authenticated: true,
		AuthType:      gwtypes.AuthApiKey,
		PrincipalID:   p.ID,
		Permissions:   p.Capabilities,
		AllowedPrefix: p.BasicPath,
		KeyInfo:       &p,
	}, nil
}

func (r *Resolver) resolveBasic(ctx context.Context, encoded string) (gwtypes.AuthResult, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return gwtypes.AuthResult{}, gwerr.New(gwerr.Unauthorized, "malformed basic credentials")
	}

	user, pass, ok := strings.Cut(string(raw), ":")
	if !ok {
		return gwtypes.AuthResult{}, gwerr.New(gwerr.Unauthorized, "malformed basic credentials")
	}

	if user == pass && pass == r.store.AdminToken() && pass != "" {
		return adminResult(), nil
	}

	if user == pass {
		return r.resolveApiKey(ctx, pass)
	}

	return gwtypes.AuthResult{}, gwerr.New(gwerr.Unauthorized, "invalid basic credentials")
}

func adminResult() gwtypes.AuthResult {
	return gwtypes.AuthResult{
		Authenticated: true,
		AuthType:      gwtypes.AuthAdmin,
		AllowedPrefix: "/",
		Permissions: gwtypes.CapabilitySet{
			gwtypes.CapAdmin: true,
			gwtypes.CapMount: true,
			gwtypes.CapFile:  true,
			gwtypes.CapText:  true,
		},
	}
}
