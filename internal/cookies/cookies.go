// Package cookies turns stored session cookie material into browser-ready cookies.
//
// The cookie source hands over one of three shapes: a JSON array of cookies as exported
// by a browser extension, the same array Base64-encoded, or just the li_at token.
// Materialize accepts all three.
package cookies

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	PrimaryName   = "li_at"
	DefaultDomain = ".linkedin.com"
	DefaultPath   = "/"
	DefaultTTL    = 24 * time.Hour
)

// ErrNoUsableCookies means nothing in the blob could authenticate a browser.
var ErrNoUsableCookies = errors.New("no usable cookie material")

// MaterializationError reports why no cookie could be recovered.
type MaterializationError struct {
	Reason string
}

func (e *MaterializationError) Error() string {
	return fmt.Sprintf("cookie materialization failed: %s", e.Reason)
}

func (e *MaterializationError) Unwrap() error {
	return ErrNoUsableCookies
}

// SameSite is the cross-site policy of a prepared cookie.
type SameSite string

const (
	SameSiteNone   SameSite = "None"
	SameSiteLax    SameSite = "Lax"
	SameSiteStrict SameSite = "Strict"
)

// RawCookie is one cookie as exported by the source browser.
type RawCookie struct {
	Name           string   `json:"name"`
	Value          string   `json:"value"`
	Domain         string   `json:"domain"`
	Path           string   `json:"path"`
	ExpirationDate *float64 `json:"expirationDate,omitempty"`
	HTTPOnly       bool     `json:"httpOnly"`
	Secure         bool     `json:"secure"`
	SameSite       string   `json:"sameSite"`
	Session        bool     `json:"session"`
}

// Prepared is a cookie normalized for injection into a browser context.
type Prepared struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  time.Time
	HTTPOnly bool
	Secure   bool
	SameSite SameSite
}

// Session is the caller-supplied authentication bundle. The core only reads it.
type Session struct {
	PrimaryToken string
	FullCookies  string
	UserAgent    string
	LastUsed     time.Time
}

// primaryTokenPattern matches a li_at value. They start with AQED and run to a few hundred chars.
var primaryTokenPattern = regexp.MustCompile(`AQED[A-Za-z0-9_\-]{20,}`)

// Materializer decodes cookie blobs. The zero value is not usable; call New.
type Materializer struct {
	log *zap.SugaredLogger
	now func() time.Time
}

// New creates a Materializer that logs diagnostics to log.
func New(log *zap.SugaredLogger) *Materializer {
	return &Materializer{log: log, now: time.Now}
}

// Materialize decodes blob, trying JSON, then Base64 JSON, then a bare primary token.
func (m *Materializer) Materialize(blob string) ([]Prepared, error) {
	blob = strings.TrimSpace(blob)
	if blob == "" {
		return nil, &MaterializationError{Reason: "empty cookie blob"}
	}

	raw, err := decodeJSON(blob)
	if err != nil {
		m.log.Debugw("Cookie blob is not JSON, trying base64", "error", err)
		raw, err = decodeBase64JSON(blob)
	}
	if err != nil {
		m.log.Debugw("Cookie blob is not base64 JSON, trying token extraction", "error", err)
		token := primaryTokenPattern.FindString(blob)
		if token == "" {
			return nil, &MaterializationError{Reason: "blob is neither a cookie array nor a primary token"}
		}
		raw = []RawCookie{{Name: PrimaryName, Value: token, Secure: true, HTTPOnly: true}}
	}

	prepared := m.prepare(raw)
	if len(prepared) == 0 {
		return nil, &MaterializationError{Reason: "every cookie in the blob had an empty value"}
	}

	m.log.Debugw("Cookies materialized", "input", len(raw), "usable", len(prepared))
	return prepared, nil
}

// FromSession materializes the full cookie set when present and makes sure the primary
// token is part of the result. It falls back to the primary token alone when the full
// set cannot be decoded.
func (m *Materializer) FromSession(s Session) ([]Prepared, error) {
	if strings.TrimSpace(s.FullCookies) != "" {
		prepared, err := m.Materialize(s.FullCookies)
		if err == nil {
			if s.PrimaryToken != "" && !hasPrimary(prepared) {
				prepared = append(prepared, m.prepare([]RawCookie{{
					Name: PrimaryName, Value: s.PrimaryToken, Secure: true, HTTPOnly: true,
				}})...)
			}
			return prepared, nil
		}
		m.log.Warnw("Full cookie set unusable, falling back to primary token", "error", err)
	}

	if strings.TrimSpace(s.PrimaryToken) == "" {
		return nil, &MaterializationError{Reason: "session has neither cookies nor a primary token"}
	}

	return m.prepare([]RawCookie{{
		Name: PrimaryName, Value: strings.TrimSpace(s.PrimaryToken), Secure: true, HTTPOnly: true,
	}}), nil
}

func (m *Materializer) prepare(raw []RawCookie) []Prepared {
	now := m.now()
	out := make([]Prepared, 0, len(raw))

	for _, c := range raw {
		if c.Name == "" || c.Value == "" {
			continue
		}

		p := Prepared{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   NormalizeDomain(c.Domain),
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: normalizeSameSite(c.SameSite),
		}
		if p.Path == "" {
			p.Path = DefaultPath
		}
		if c.ExpirationDate != nil && *c.ExpirationDate > 0 && !c.Session {
			sec := int64(*c.ExpirationDate)
			p.Expires = time.Unix(sec, 0)
		} else {
			p.Expires = now.Add(DefaultTTL)
		}
		// Chrome rejects SameSite=None cookies that are not Secure.
		if p.SameSite == SameSiteNone {
			p.Secure = true
		}

		out = append(out, p)
	}

	return out
}

// NormalizeDomain maps a captured cookie domain onto the registrable domain with a leading dot,
// so ".www.linkedin.com" and "www.linkedin.com" both become ".linkedin.com".
func NormalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimLeft(d, ".")
	if d == "" {
		return DefaultDomain
	}
	if net.ParseIP(d) != nil || d == "localhost" {
		return d
	}
	d = strings.TrimPrefix(d, "www.")
	if !strings.Contains(d, ".") {
		return d
	}
	return "." + d
}

func normalizeSameSite(s string) SameSite {
	switch strings.ToLower(s) {
	case "lax":
		return SameSiteLax
	case "strict":
		return SameSiteStrict
	default:
		// no_restriction, unspecified and empty all behave as None for cross-site use
		return SameSiteNone
	}
}

func decodeJSON(blob string) ([]RawCookie, error) {
	var raw []RawCookie
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse cookie JSON: %w", err)
	}
	return raw, nil
}

func decodeBase64JSON(blob string) ([]RawCookie, error) {
	var lastErr error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		data, err := enc.DecodeString(blob)
		if err != nil {
			lastErr = err
			continue
		}
		return decodeJSON(string(data))
	}
	return nil, fmt.Errorf("failed to decode base64 cookie blob: %w", lastErr)
}

func hasPrimary(cookies []Prepared) bool {
	for _, c := range cookies {
		if c.Name == PrimaryName {
			return true
		}
	}
	return false
}
