// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"net/http"
	"strings"

	"github.com/AleutianAI/tolstack/pkg/extensions"
	"github.com/gin-gonic/gin"
)

const authInfoKey = "tolstack_auth"

// Auth authenticates each request with provider and stores the caller for
// GetAuthInfo. The token comes from "Authorization: Bearer", or from the
// access_token query parameter for clients that cannot set headers, such
// as browser websockets. A nil provider accepts everyone.
func Auth(provider extensions.AuthProvider) gin.HandlerFunc {
	if provider == nil {
		provider = &extensions.NopAuthProvider{}
	}
	return func(c *gin.Context) {
		info, err := provider.Validate(c.Request.Context(), bearerToken(c))
		if err != nil {
			c.Header("WWW-Authenticate", `Bearer realm="tolstack"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":      "unauthorized",
				"request_id": GetRequestID(c),
			})
			return
		}
		c.Set(authInfoKey, info)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return c.Query("access_token")
}

// GetAuthInfo returns the caller Auth stored, or nil.
func GetAuthInfo(c *gin.Context) *extensions.AuthInfo {
	v, ok := c.Get(authInfoKey)
	if !ok {
		return nil
	}
	info, _ := v.(*extensions.AuthInfo)
	return info
}
