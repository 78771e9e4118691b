package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Token is a stored OAuth credential.
type Token struct {
	Provider     string
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	Expiry       time.Time
	UpdatedAt    time.Time
}

// SaveToken upserts a provider's token. An empty refresh token keeps the one
// already stored, since refresh responses usually omit it.
func (db *DB) SaveToken(ctx context.Context, tok *Token) error {
	if tok.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	_, err := db.conn.ExecContext(ctx, `
	INSERT INTO oauth_tokens (provider, access_token, refresh_token, token_type, scope, expiry, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(provider) DO UPDATE SET
		access_token = excluded.access_token,
		refresh_token = COALESCE(excluded.refresh_token, oauth_tokens.refresh_token),
		token_type = excluded.token_type,
		scope = COALESCE(excluded.scope, oauth_tokens.scope),
		expiry = excluded.expiry,
		updated_at = excluded.updated_at
	`,
		tok.Provider,
		nullString(tok.AccessToken),
		nullString(tok.RefreshToken),
		nullString(tok.TokenType),
		nullString(tok.Scope),
		timeToNullString(&tok.Expiry),
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// GetToken returns a provider's token, or ErrNotFound.
func (db *DB) GetToken(ctx context.Context, provider string) (*Token, error) {
	var tok Token
	var access, refresh, typ, scope, expiry sql.NullString
	var updatedAt string
	err := db.conn.QueryRowContext(ctx, `
	SELECT provider, access_token, refresh_token, token_type, scope, expiry, updated_at
	FROM oauth_tokens WHERE provider = ?
	`, provider).Scan(&tok.Provider, &access, &refresh, &typ, &scope, &expiry, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("token %s: %w", provider, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	tok.AccessToken = access.String
	tok.RefreshToken = refresh.String
	tok.TokenType = typ.String
	tok.Scope = scope.String
	if t := nullStringToTime(expiry); t != nil {
		tok.Expiry = *t
	}
	tok.UpdatedAt = parseTime(updatedAt)
	return &tok, nil
}

// DeleteToken removes a provider's token. Idempotent.
func (db *DB) DeleteToken(ctx context.Context, provider string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM oauth_tokens WHERE provider = ?`, provider); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
