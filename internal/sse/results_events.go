package sse

import (
	"context"
	"sync"
	"time"
)

// ResultsChanged tells subscribers that tallies moved and should be re-read.
type ResultsChanged struct {
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// ResultsEmitter fans result-change notifications out to SSE clients.
// Each client channel holds one pending notification; bursts collapse into it.
type ResultsEmitter struct {
	clients     map[chan ResultsChanged]struct{}
	clientMutex sync.RWMutex
}

func NewResultsEmitter() *ResultsEmitter {
	return &ResultsEmitter{clients: make(map[chan ResultsChanged]struct{})}
}

// Subscribe registers a client until ctx is done, after which the channel
// is closed.
func (e *ResultsEmitter) Subscribe(ctx context.Context) <-chan ResultsChanged {
	clientChan := make(chan ResultsChanged, 1)

	e.clientMutex.Lock()
	e.clients[clientChan] = struct{}{}
	e.clientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeClient(clientChan)
	}()

	return clientChan
}

// Notify tells every subscriber without blocking.
func (e *ResultsEmitter) Notify(reason string) {
	event := ResultsChanged{Reason: reason, At: time.Now()}

	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()

	for clientChan := range e.clients {
		select {
		case clientChan <- event:
		default:
			// Client already has a pending refresh
		}
	}
}

func (e *ResultsEmitter) removeClient(clientChan chan ResultsChanged) {
	e.clientMutex.Lock()
	defer e.clientMutex.Unlock()

	if _, ok := e.clients[clientChan]; ok {
		delete(e.clients, clientChan)
		close(clientChan)
	}
}

// ClientCount returns the number of connected clients
func (e *ResultsEmitter) ClientCount() int {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()
	return len(e.clients)
}
