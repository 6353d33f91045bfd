package ethauth

import (
	"fmt"
	"time"
)

const (
	// ClockDrift is the tolerance applied to both ends of the iat and exp
	// windows.
	ClockDrift = 5 * time.Minute
	// MaxTokenAge is the longest lifetime a token may claim.
	MaxTokenAge = 365 * 24 * time.Hour
)

// nowFunc is the clock used by claims validation.
var nowFunc = time.Now

// Claims is the message signed by the account. A zero value in an optional
// field means the field is absent: it is omitted from the JSON payload and
// from the typed data.
type Claims struct {
	App       string `json:"app" yaml:"app"`
	IssuedAt  int64  `json:"iat,omitempty" yaml:"iat,omitempty"`
	ExpiresAt int64  `json:"exp" yaml:"exp"`
	Nonce     uint64 `json:"n,omitempty" yaml:"n,omitempty"`
	Type      string `json:"typ,omitempty" yaml:"typ,omitempty"`
	Origin    string `json:"ogn,omitempty" yaml:"ogn,omitempty"`
	Version   string `json:"v" yaml:"v"`
}

func (c Claims) HasIssuedAt() bool { return c.IssuedAt > 0 }
func (c Claims) HasNonce() bool    { return c.Nonce > 0 }
func (c Claims) HasType() bool     { return c.Type != "" }
func (c Claims) HasOrigin() bool   { return c.Origin != "" }

// claimField describes one member of the Claims typed-data struct.
type claimField struct {
	name    string
	typ     string
	value   func(c Claims) any
	present func(c Claims) bool
}

// claimFields is the fixed typed-data order of the Claims struct.
var claimFields = []claimField{
	{"app", "string", func(c Claims) any { return c.App }, func(c Claims) bool { return c.App != "" }},
	{"iat", "int64", func(c Claims) any { return c.IssuedAt }, Claims.HasIssuedAt},
	{"exp", "int64", func(c Claims) any { return c.ExpiresAt }, func(c Claims) bool { return c.ExpiresAt > 0 }},
	{"n", "uint64", func(c Claims) any { return c.Nonce }, Claims.HasNonce},
	{"typ", "string", func(c Claims) any { return c.Type }, Claims.HasType},
	{"ogn", "string", func(c Claims) any { return c.Origin }, Claims.HasOrigin},
	{"v", "string", func(c Claims) any { return c.Version }, func(c Claims) bool { return c.Version != "" }},
}

// Validate checks the claims against the current time.
func (c Claims) Validate() error {
	return c.ValidateAt(nowFunc())
}

// ValidateAt checks the claims as of now.
func (c Claims) ValidateAt(now time.Time) error {
	if c.App == "" {
		return ErrEmptyApp
	}
	if c.Version == "" {
		return ErrEmptyVersion
	}

	ts := now.Unix()
	drift := int64(ClockDrift / time.Second)
	maxAge := int64((MaxTokenAge + ClockDrift) / time.Second)

	if c.IssuedAt != 0 && (c.IssuedAt > ts+drift || c.IssuedAt < ts-maxAge) {
		return fmt.Errorf("%w: iat %d outside [%d, %d]", ErrInvalidIssuedAt, c.IssuedAt, ts-maxAge, ts+drift)
	}
	if c.ExpiresAt < ts-drift || c.ExpiresAt > ts+maxAge {
		return fmt.Errorf("%w: exp %d outside [%d, %d]", ErrExpired, c.ExpiresAt, ts-drift, ts+maxAge)
	}
	return nil
}

// ValidateClaims checks claims against the current time.
func ValidateClaims(claims Claims) error {
	return claims.Validate()
}
