// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"slices"
)

// ErrUnauthorized is returned when a token does not authenticate.
//
// Implementations wrap it with the reason:
//
//	return nil, fmt.Errorf("token expired: %w", extensions.ErrUnauthorized)
var ErrUnauthorized = errors.New("unauthorized")

// Roles known to the server.
const (
	// RoleAdmin may analyze, read and delete runs.
	RoleAdmin = "admin"

	// RoleAnalyst may analyze and read runs.
	RoleAnalyst = "analyst"
)

// LocalUser is the identity NopAuthProvider returns.
const LocalUser = "local-user"

// AuthInfo is the identity behind an authenticated request.
type AuthInfo struct {
	// UserID identifies the caller. Never empty.
	UserID string

	// Roles the caller holds.
	Roles []string
}

// HasRole reports whether the caller holds role.
func (a *AuthInfo) HasRole(role string) bool {
	if a == nil {
		return false
	}
	return slices.Contains(a.Roles, role)
}

// AuthProvider validates a bearer token and returns the caller.
//
// Implementations must be safe for concurrent use.
type AuthProvider interface {
	// Validate checks token, which may be empty when the request carried
	// none.
	//
	// Returns:
	//   - *AuthInfo: The caller, when err is nil
	//   - error: Wraps ErrUnauthorized for a rejected token
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// NopAuthProvider accepts every request as an admin local user.
//
// Thread-safe: This implementation has no mutable state.
type NopAuthProvider struct{}

// Validate ignores token and returns the local user.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID: LocalUser,
		Roles:  []string{RoleAdmin},
	}, nil
}

// TokenAuthProvider accepts one shared token.
//
// Thread-safe: The token is immutable after construction.
type TokenAuthProvider struct {
	token  []byte
	userID string
}

// NewTokenAuthProvider returns a provider that accepts exactly token. The
// caller is reported as "token-user" with the admin role.
func NewTokenAuthProvider(token string) (*TokenAuthProvider, error) {
	if token == "" {
		return nil, errors.New("token auth: empty token")
	}
	return &TokenAuthProvider{token: []byte(token), userID: "token-user"}, nil
}

// Validate compares token in constant time.
func (p *TokenAuthProvider) Validate(_ context.Context, token string) (*AuthInfo, error) {
	if token == "" {
		return nil, fmt.Errorf("missing bearer token: %w", ErrUnauthorized)
	}
	if subtle.ConstantTimeCompare([]byte(token), p.token) != 1 {
		return nil, fmt.Errorf("invalid bearer token: %w", ErrUnauthorized)
	}
	return &AuthInfo{
		UserID: p.userID,
		Roles:  []string{RoleAdmin},
	}, nil
}

// Compile-time interface compliance checks.
var (
	_ AuthProvider = (*NopAuthProvider)(nil)
	_ AuthProvider = (*TokenAuthProvider)(nil)
)
