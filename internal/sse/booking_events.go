package sse

import (
	"context"
	"sync"

	"resort-booking/internal/models"
)

// AllVerticals is the subscription key that receives every booking event.
const AllVerticals = "all"

// BookingEventEmitter fans booking lifecycle events out to admin SSE clients.
type BookingEventEmitter struct {
	// key: vertical or AllVerticals, value: client channels
	clients map[string][]chan models.BookingEvent
	mu      sync.RWMutex
}

func NewBookingEventEmitter() *BookingEventEmitter {
	return &BookingEventEmitter{
		clients: make(map[string][]chan models.BookingEvent),
	}
}

// Subscribe registers a client for vertical ("" means all). The channel is
// closed and removed once ctx is done.
func (e *BookingEventEmitter) Subscribe(ctx context.Context, vertical string) <-chan models.BookingEvent {
	if vertical == "" {
		vertical = AllVerticals
	}
	clientChan := make(chan models.BookingEvent, 10)

	e.mu.Lock()
	e.clients[vertical] = append(e.clients[vertical], clientChan)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(vertical, clientChan)
	}()

	return clientChan
}

// Emit delivers evt to subscribers of its vertical and to AllVerticals.
// Slow clients with a full buffer miss the event.
func (e *BookingEventEmitter) Emit(evt models.BookingEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, key := range []string{string(evt.Vertical), AllVerticals} {
		for _, clientChan := range e.clients[key] {
			select {
			case clientChan <- evt:
			default:
			}
		}
	}
}

// Subscribers counts open client channels for vertical.
func (e *BookingEventEmitter) Subscribers(vertical string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[vertical])
}

func (e *BookingEventEmitter) remove(vertical string, clientChan chan models.BookingEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[vertical]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[vertical] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}
	if len(e.clients[vertical]) == 0 {
		delete(e.clients, vertical)
	}
}
