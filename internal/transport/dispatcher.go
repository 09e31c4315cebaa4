// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"sync"

	"go.uber.org/zap"
)

// dispatcher owns the handler table and the single goroutine that delivers
// inbound frames. Handlers are looked up at delivery time so a replacement
// registered mid-stream applies to the next frame.
type dispatcher struct {
	mu       sync.RWMutex
	handlers Handlers

	queue     chan Frame
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once

	stats  *counters
	logger *zap.Logger
}

func newDispatcher(h Handlers, queueSize int, stats *counters, logger *zap.Logger) *dispatcher {
	if h == nil {
		h = make(Handlers)
	} else {
		h = h.Clone()
	}
	return &dispatcher{
		handlers: h,
		queue:    make(chan Frame, queueSize),
		done:     make(chan struct{}),
		stats:    stats,
		logger:   logger,
	}
}

func (d *dispatcher) on(ch Channel, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if h == nil {
		delete(d.handlers, ch)
		return
	}
	d.handlers[ch] = h
}

func (d *dispatcher) lookup(ch Channel) Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handlers[ch]
}

func (d *dispatcher) start() {
	d.startOnce.Do(func() { go d.run() })
}

func (d *dispatcher) stop() {
	d.stopOnce.Do(func() { close(d.done) })
}

// push queues a frame for delivery. It blocks while the queue is full and
// reports false once the dispatcher has stopped.
func (d *dispatcher) push(f Frame) bool {
	select {
	case <-d.done:
		return false
	default:
	}
	select {
	case d.queue <- f:
		d.stats.received.Add(1)
		return true
	case <-d.done:
		return false
	}
}

func (d *dispatcher) run() {
	for {
		select {
		case f := <-d.queue:
			d.deliver(f)
		case <-d.done:
			return
		}
	}
}

func (d *dispatcher) deliver(f Frame) {
	h := d.lookup(f.Type)
	if h == nil {
		d.stats.unhandled.Add(1)
		d.logger.Debug("FRAME_UNHANDLED", zap.String("channel", string(f.Type)))
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("HANDLER_PANIC",
				zap.String("channel", string(f.Type)),
				zap.Any("panic", r))
		}
	}()
	h(f.Data)
}
