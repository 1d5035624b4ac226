// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extensions defines the hooks a deployment can fill to secure and
// audit the tolstack server without changing it.
//
// The server itself ships two kinds of hook:
//
//   - auth.go: Bearer token authentication (AuthProvider)
//   - audit.go: An audit trail of run changes (AuditLogger)
//
// Each hook has a no-op default, so a local server answers every request
// and records nothing:
//
//	opts := extensions.DefaultOptions()
//
// A shared server swaps in real implementations:
//
//	auth, err := extensions.NewTokenAuthProvider(cfg.Server.Token)
//	if err != nil {
//	    return err
//	}
//	opts := extensions.DefaultOptions().
//	    WithAuth(auth).
//	    WithAudit(extensions.NewSlogAuditLogger(logger))
//
// # Thread Safety
//
// All implementations must be safe for concurrent use.
package extensions

// ServiceOptions groups the extension points of the HTTP service.
//
// Nil fields are treated as their no-op default by the code that uses them.
type ServiceOptions struct {
	// AuthProvider validates bearer tokens on /v1.
	// Default: NopAuthProvider (every request is the local user)
	AuthProvider AuthProvider

	// AuditLogger records run creation and deletion.
	// Default: NopAuditLogger (discards all events)
	AuditLogger AuditLogger
}

// DefaultOptions returns ServiceOptions with no-op defaults.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		AuthProvider: &NopAuthProvider{},
		AuditLogger:  &NopAuditLogger{},
	}
}

// WithAuth returns a copy of opts with the given AuthProvider.
func (opts ServiceOptions) WithAuth(provider AuthProvider) ServiceOptions {
	opts.AuthProvider = provider
	return opts
}

// WithAudit returns a copy of opts with the given AuditLogger.
func (opts ServiceOptions) WithAudit(logger AuditLogger) ServiceOptions {
	opts.AuditLogger = logger
	return opts
}
