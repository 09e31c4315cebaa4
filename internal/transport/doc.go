// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport connects the client to the RAG backend.
//
// Every implementation exposes the same publish/subscribe surface over named
// channels. Inbound frames pass through a single dispatcher goroutine, so
// handlers run one at a time in receive order.
//
// # Key Types
//
//   - Transport: Connect, On, Send, UploadFiles, State, Stats, Close
//   - WebSocket: realtime connection with fixed-delay reconnect
//   - HTTP: query/chunks/answer endpoints with a server-sent-event answer
//   - Mock: in-process simulator for local development
//   - Clock: timer source, swapped for a fake in tests
//
// # Usage
//
//	t := transport.NewWebSocket("ws://localhost:50000", transport.Options{
//	    Logger: logger,
//	    OnState: func(s transport.State) { ... },
//	})
//	t.On(transport.ChannelMessage, func(data json.RawMessage) { ... })
//	if err := t.Connect(ctx); err != nil {
//	    logger.Warn("initial connect failed, retrying", zap.Error(err))
//	}
//	t.Send(transport.ChannelQuery, transport.QueryPayload{Text: "hello"})
package transport
