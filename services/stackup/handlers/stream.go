// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/AleutianAI/tolstack/services/stackup/report"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Feed fans run summaries out to stream subscribers.
//
// Publish never blocks: a subscriber whose buffer is full misses the
// summary. Thread Safety: Safe for concurrent use.
type Feed struct {
	mu     sync.Mutex
	subs   map[chan report.Summary]struct{}
	buffer int
}

// NewFeed returns a feed whose subscribers buffer up to buffer summaries.
// buffer < 1 means 16.
func NewFeed(buffer int) *Feed {
	if buffer < 1 {
		buffer = 16
	}
	return &Feed{subs: make(map[chan report.Summary]struct{}), buffer: buffer}
}

// Subscribe registers a subscriber. Call cancel to unregister; the
// channel is closed then.
func (f *Feed) Subscribe() (ch <-chan report.Summary, cancel func()) {
	c := make(chan report.Summary, f.buffer)
	f.mu.Lock()
	f.subs[c] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	return c, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, c)
			f.mu.Unlock()
			close(c)
		})
	}
}

// Publish delivers s to every subscriber with room for it.
func (f *Feed) Publish(s report.Summary) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.subs {
		select {
		case c <- s:
		default:
		}
	}
}

// Subscribers returns the number of active subscribers.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// =============================================================================
// WebSocket
// =============================================================================

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleRunStream streams the summary of every new run over a WebSocket.
//
// Description:
//
//	Each message is one report.Summary as JSON. The server pings every
//	54s and drops a client that stops answering. Client messages are
//	read and discarded.
//
// Responses:
//   - 101: Upgraded.
//   - 503: No feed is configured.
func HandleRunStream(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if svc.Feed == nil {
			abort(c, http.StatusServiceUnavailable, "run stream is disabled")
			return
		}
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			svc.logger().Warn("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()

		runs, cancel := svc.Feed.Subscribe()
		defer cancel()
		svc.logger().Debug("run stream client connected", "remote", c.ClientIP())

		// The reader notices the client going away.
		gone := make(chan struct{})
		ws.SetReadLimit(512)
		_ = ws.SetReadDeadline(time.Now().Add(streamPongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		go func() {
			defer close(gone)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(streamPingPeriod)
		defer ping.Stop()
		ctx := c.Request.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case <-gone:
				return
			case s := <-runs:
				_ = ws.SetWriteDeadline(time.Now().Add(streamWriteWait))
				if err := ws.WriteJSON(s); err != nil {
					svc.logger().Debug("run stream write failed", "error", err)
					return
				}
			case <-ping.C:
				_ = ws.SetWriteDeadline(time.Now().Add(streamWriteWait))
				if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}
