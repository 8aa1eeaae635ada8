// Package auth decides whether an injected session is actually signed in.
package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/yourusername/linkedin-connector/internal/browser"
	"github.com/yourusername/linkedin-connector/internal/config"
)

// Signal names the check that decided a verification
type Signal string

const (
	SignalLoginURL     Signal = "login_url"
	SignalAvatar       Signal = "avatar"
	SignalNav          Signal = "nav"
	SignalText         Signal = "text_marker"
	SignalChallenge    Signal = "challenge"
	SignalLoginForm    Signal = "login_form"
	SignalUndetermined Signal = "undetermined"
)

// ChallengeType represents the type of security challenge detected
type ChallengeType string

const (
	ChallengeNone   ChallengeType = "none"
	Challenge2FA    ChallengeType = "2fa"
	ChallengeVerify ChallengeType = "verification"
)

var twoFactorSelectors = []string{
	"#input__phone_verification_pin",
	"input[name='pin']",
	"#two-step-challenge",
}

var verificationKeywords = []string{
	"unusual activity",
	"confirm your identity",
	"let's do a quick security check",
}

// Result is the outcome of a login check
type Result struct {
	LoggedIn     bool
	RedirectedTo string
	Signal       Signal
	Challenge    ChallengeType
}

// Verifier checks a page's session against the landing page
type Verifier struct {
	cfg config.LoginConfig
	log *zap.SugaredLogger
}

// NewVerifier creates a Verifier
func NewVerifier(cfg config.LoginConfig, log *zap.SugaredLogger) *Verifier {
	return &Verifier{cfg: cfg, log: log}
}

// Verify navigates to the landing page and classifies the session.
// An error is returned only when the page could not be loaded at all.
func (v *Verifier) Verify(ctx context.Context, page browser.Page) (Result, error) {
	v.log.Debugw("Verifying login", "landing_url", v.cfg.LandingURL)

	if err := page.Navigate(ctx, v.cfg.LandingURL); err != nil {
		return Result{}, fmt.Errorf("failed to open landing page: %w", err)
	}
	if err := page.WaitLoad(ctx); err != nil {
		return Result{}, err
	}
	if err := page.WaitIdle(ctx); err != nil {
		v.log.Debugw("Landing page did not go idle", "error", err)
	}

	current, err := page.URL(ctx)
	if err != nil {
		return Result{}, err
	}

	if v.isLoginURL(current) {
		v.log.Infow("Session redirected to login", "url", current)
		return Result{RedirectedTo: current, Signal: SignalLoginURL, Challenge: challengeFromURL(current)}, nil
	}

	if v.hasAny(ctx, page, v.cfg.AvatarSelectors) {
		return v.loggedIn(SignalAvatar), nil
	}
	if v.hasAny(ctx, page, v.cfg.NavSelectors) {
		return v.loggedIn(SignalNav), nil
	}

	text, err := page.BodyText(ctx)
	if err != nil {
		v.log.Debugw("Failed to read landing page text", "error", err)
	}
	text = strings.ToLower(text)
	if containsAny(text, v.cfg.TextMarkers) {
		return v.loggedIn(SignalText), nil
	}

	if v.hasAny(ctx, page, twoFactorSelectors) {
		v.log.Warnw("Security challenge on landing page", "challenge", Challenge2FA)
		return Result{RedirectedTo: current, Signal: SignalChallenge, Challenge: Challenge2FA}, nil
	}
	if containsAny(text, verificationKeywords) {
		v.log.Warnw("Security challenge on landing page", "challenge", ChallengeVerify)
		return Result{RedirectedTo: current, Signal: SignalChallenge, Challenge: ChallengeVerify}, nil
	}

	if v.hasAny(ctx, page, v.cfg.FormSelectors) {
		v.log.Infow("Login form present on landing page", "url", current)
		return Result{RedirectedTo: current, Signal: SignalLoginForm, Challenge: ChallengeNone}, nil
	}

	v.log.Warnw("login state undetermined", "url", current)
	return Result{RedirectedTo: current, Signal: SignalUndetermined, Challenge: ChallengeNone}, nil
}

func (v *Verifier) loggedIn(signal Signal) Result {
	v.log.Debugw("Session is logged in", "signal", signal)
	return Result{LoggedIn: true, Signal: signal, Challenge: ChallengeNone}
}

func (v *Verifier) isLoginURL(raw string) bool {
	path := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		path = u.Path
	}
	path = strings.ToLower(path)
	for _, p := range v.cfg.LoginPatterns {
		if p != "" && strings.Contains(path, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func (v *Verifier) hasAny(ctx context.Context, page browser.Page, selectors []string) bool {
	for _, sel := range selectors {
		has, err := page.Has(ctx, sel)
		if err != nil {
			v.log.Debugw("Selector check failed", "selector", sel, "error", err)
			continue
		}
		if has {
			return true
		}
	}
	return false
}

func challengeFromURL(raw string) ChallengeType {
	if strings.Contains(strings.ToLower(raw), "/checkpoint") {
		return ChallengeVerify
	}
	return ChallengeNone
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(text, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
