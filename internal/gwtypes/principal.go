package gwtypes

import "time"

// Capability is a permission flag a Principal may hold.
type Capability string

const (
	CapText  Capability = "text"
	CapFile  Capability = "file"
	CapMount Capability = "mount"
	CapAdmin Capability = "admin"
)

// CapabilitySet is a small set of Capability flags.
type CapabilitySet map[Capability]bool

// Has reports whether the set contains the given capability.
func (c CapabilitySet) Has(cap Capability) bool {
	return c[CapAdmin] || c[cap]
}

// AuthType identifies how a request was authenticated.
type AuthType string

const (
	AuthNone    AuthType = "none"
	AuthAdmin   AuthType = "admin"
	AuthApiKey  AuthType = "apiKey"
)

// Principal is a subject making requests: either an unrestricted admin or
// an API key bounded by basicPath and a capability set.
type Principal struct {
	ID           string        `json:"id" gorm:"primaryKey"`
	Type         AuthType      `json:"type"`
	BasicPath    VirtualPath   `json:"basicPath"`
	Capabilities CapabilitySet `json:"capabilities" gorm:"-"`
	ExpiresAt    *time.Time    `json:"expiresAt"`
	LastUsed     time.Time     `json:"lastUsed"`
}

// Expired reports whether the principal's API key has passed its expiry.
func (p Principal) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && now.After(*p.ExpiresAt)
}

// AuthResult is the outcome of evaluating a request's credentials. It is
// never persisted; it lives for the duration of one request.
type AuthResult struct {
	Authenticated bool
	AuthType      AuthType
	PrincipalID   string
	Permissions   CapabilitySet
	AllowedPrefix VirtualPath
	KeyInfo       *Principal
}

// IsAdmin reports whether the result represents the unrestricted admin.
func (a AuthResult) IsAdmin() bool {
	return a.AuthType == AuthAdmin
}

// PrincipalClass returns the DirectoryCache partition key component for
// this result: "admin" or "apikey:<allowedPrefix>".
func (a AuthResult) PrincipalClass() string {
	if a.IsAdmin() {
		return "admin"
	}
	return "apikey:" + string(a.AllowedPrefix)
}

// Allows reports whether the given virtual path is within the principal's
// allowed prefix.
func (a AuthResult) Allows(p VirtualPath) bool {
	if a.IsAdmin() {
		return true
	}
	return p.HasPrefix(a.AllowedPrefix)
}
