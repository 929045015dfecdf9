package http

import (
	"log/slog"
	"sync"
)

// StreamManager fans reload events out to the connected SSE clients.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan string]struct{}
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	return &StreamManager{
		subscribers: make(map[chan string]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a client. The returned function unregisters it and closes the channel.
func (sm *StreamManager) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 10)

	sm.mu.Lock()
	sm.subscribers[ch] = struct{}{}
	sm.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			delete(sm.subscribers, ch)
			close(ch)
			sm.mu.Unlock()
		})
	}
}

// Broadcast sends msg to every client, dropping it for clients whose buffer is full.
func (sm *StreamManager) Broadcast(msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers {
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("SSE client buffer full, dropping event")
		}
	}
}

// Len returns the number of connected clients.
func (sm *StreamManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers)
}
