// Package auth manages the Google OAuth2 credential of the single account.
//
// The authorization code flow runs once (`pd auth connect` or the
// dashboard's /auth/callback). The resulting token, including its refresh
// token, lives in the oauth_tokens table. TokenSource hands out a source
// that refreshes on demand and writes each new access token back, so every
// process sharing the database sees the latest one.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/mschirtzinger/personal-dash/internal/db"
	"github.com/mschirtzinger/personal-dash/internal/provider"
)

// ProviderGoogle is the oauth_tokens key for the Google account.
const ProviderGoogle = "google"

// Read-only scopes over events and the calendar list.
const (
	ScopeCalendarReadonly     = "https://www.googleapis.com/auth/calendar.readonly"
	ScopeCalendarListReadonly = "https://www.googleapis.com/auth/calendar.calendarlist.readonly"
)

// stateTTL bounds how long an issued state value is accepted.
const stateTTL = 10 * time.Minute

// ErrInvalidState is returned when a callback carries an unknown or expired state.
var ErrInvalidState = errors.New("invalid oauth state")

// Store is the token persistence surface. *db.DB implements it.
type Store interface {
	SaveToken(ctx context.Context, tok *db.Token) error
	GetToken(ctx context.Context, provider string) (*db.Token, error)
	ResetAccount(ctx context.Context) error
}

// Config holds the OAuth client registration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Manager runs the OAuth flow and issues token sources.
type Manager struct {
	oauth  *oauth2.Config
	store  Store
	logger *log.Logger
	now    func() time.Time

	mu     stdsync.Mutex
	states map[string]time.Time
}

// Status describes the stored credential.
type Status struct {
	Connected  bool      `json:"connected"`
	Scope      string    `json:"scope,omitempty"`
	Expiry     time.Time `json:"expiry,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
	HasRefresh bool      `json:"has_refresh_token"`
}

// New creates a Manager. If logger is nil, a default logger writing to
// stderr is used.
func New(cfg Config, store Store, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(os.Stderr, "[auth] ", log.LstdFlags)
	}
	return &Manager{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{ScopeCalendarReadonly, ScopeCalendarListReadonly},
			Endpoint:     google.Endpoint,
		},
		store:  store,
		logger: logger,
		now:    time.Now,
		states: make(map[string]time.Time),
	}
}

// Configured reports whether a client id and secret are set.
func (m *Manager) Configured() bool {
	return m.oauth.ClientID != "" && m.oauth.ClientSecret != ""
}

// NewState issues a single-use state value for AuthURL.
func (m *Manager) NewState() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for s, exp := range m.states {
		if now.After(exp) {
			delete(m.states, s)
		}
	}
	state := uuid.NewString()
	m.states[state] = now.Add(stateTTL)
	return state
}

// consumeState validates and forgets a state value.
func (m *Manager) consumeState(state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.states[state]
	delete(m.states, state)
	if !ok || m.now().After(exp) {
		return ErrInvalidState
	}
	return nil
}

// AuthURL returns the consent page URL. Offline access with a forced
// consent prompt makes Google return a refresh token every time.
func (m *Manager) AuthURL(state string) string {
	return m.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and stores it.
func (m *Manager) Exchange(ctx context.Context, code string) error {
	if code == "" {
		return fmt.Errorf("authorization code is required")
	}
	tok, err := m.oauth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if err := m.save(ctx, tok); err != nil {
		return err
	}
	m.logger.Printf("Connected Google account (refresh token: %v)", tok.RefreshToken != "")
	return nil
}

// TokenSource returns a refreshing source backed by the stored token.
// provider.ErrNotConnected means there is nothing to refresh from.
func (m *Manager) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	stored, err := m.store.GetToken(ctx, ProviderGoogle)
	if errors.Is(err, db.ErrNotFound) {
		return nil, provider.ErrNotConnected
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	if stored.RefreshToken == "" {
		return nil, provider.ErrNotConnected
	}

	tok := &oauth2.Token{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		TokenType:    stored.TokenType,
		Expiry:       stored.Expiry,
	}
	return &persistingSource{
		ctx:    ctx,
		base:   m.oauth.TokenSource(ctx, tok),
		m:      m,
		access: stored.AccessToken,
	}, nil
}

// Status reports whether a usable credential is stored.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	stored, err := m.store.GetToken(ctx, ProviderGoogle)
	if errors.Is(err, db.ErrNotFound) {
		return &Status{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	return &Status{
		Connected:  stored.RefreshToken != "",
		Scope:      stored.Scope,
		Expiry:     stored.Expiry,
		UpdatedAt:  stored.UpdatedAt,
		HasRefresh: stored.RefreshToken != "",
	}, nil
}

// Disconnect forgets the account: tokens and everything mirrored from it.
// Projects and actions are kept.
func (m *Manager) Disconnect(ctx context.Context) error {
	if err := m.store.ResetAccount(ctx); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	m.logger.Printf("Disconnected Google account")
	return nil
}

func (m *Manager) save(ctx context.Context, tok *oauth2.Token) error {
	scope, _ := tok.Extra("scope").(string)
	err := m.store.SaveToken(ctx, &db.Token{
		Provider:     ProviderGoogle,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Scope:        scope,
		Expiry:       tok.Expiry,
	})
	if err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// persistingSource writes every newly minted access token back to the store.
type persistingSource struct {
	ctx  context.Context
	base oauth2.TokenSource
	m    *Manager

	mu     stdsync.Mutex
	access string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.ErrorCode == "invalid_grant" {
			return nil, fmt.Errorf("%w: %v", provider.ErrNotConnected, err)
		}
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.access {
		if err := s.m.save(s.ctx, tok); err != nil {
			s.m.logger.Printf("WARNING: Failed to persist refreshed token: %v", err)
		} else {
			s.access = tok.AccessToken
		}
	}
	return tok, nil
}
