// Package presence keeps the process-wide registry of connected users:
// live connection handles, push tokens and last reported locations.
package presence

import (
	"sync"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/geo"
)

// maxTokens bounds the per-user push token set; the oldest token is
// evicted on overflow.
const maxTokens = 3

// Conn is a live connection handle capable of delivering realtime events.
type Conn interface {
	Send(event string, payload any) error
}

type entry struct {
	mu           sync.Mutex
	conn         Conn
	tokens       []string
	location     *geo.Point
	availability domain.Availability
}

// Directory is a keyed concurrent map of presence entries. Lookups for
// unknown users return zero values, never errors. None of the methods
// block on I/O.
type Directory struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewDirectory creates an empty presence directory.
func NewDirectory() *Directory {
	return &Directory{entries: make(map[string]*entry)}
}

func (d *Directory) get(userID string) *entry {
	d.mu.RLock()
	e := d.entries[userID]
	d.mu.RUnlock()
	return e
}

func (d *Directory) getOrCreate(userID string) *entry {
	if e := d.get(userID); e != nil {
		return e
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if e := d.entries[userID]; e != nil {
		return e
	}
	e := &entry{availability: domain.AvailabilityFree}
	d.entries[userID] = e
	return e
}

// Register idempotently attaches a connection and adds a push token to the
// user's token set. Location is never touched here.
func (d *Directory) Register(userID string, conn Conn, token string) {
	e := d.getOrCreate(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if conn != nil {
		e.conn = conn
	}
	if token == "" {
		return
	}
	for i, t := range e.tokens {
		if t == token {
			// move to the back so eviction order stays most-recent-last
			e.tokens = append(append(e.tokens[:i:i], e.tokens[i+1:]...), token)
			return
		}
	}
	e.tokens = append(e.tokens, token)
	if len(e.tokens) > maxTokens {
		e.tokens = e.tokens[len(e.tokens)-maxTokens:]
	}
}

// UpdateLocation overwrites the user's last-known location. Unknown users
// are silently ignored.
func (d *Directory) UpdateLocation(userID string, pt geo.Point) {
	e := d.get(userID)
	if e == nil {
		return
	}
	e.mu.Lock()
	e.location = &pt
	e.mu.Unlock()
}

// Location returns the user's last reported location, if any.
func (d *Directory) Location(userID string) (geo.Point, bool) {
	e := d.get(userID)
	if e == nil {
		return geo.Point{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.location == nil {
		return geo.Point{}, false
	}
	return *e.location, true
}

// Connection returns the user's live connection handle, if connected.
func (d *Directory) Connection(userID string) (Conn, bool) {
	e := d.get(userID)
	if e == nil {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn == nil {
		return nil, false
	}
	return e.conn, true
}

// Tokens returns a copy of the user's push token set.
func (d *Directory) Tokens(userID string) []string {
	e := d.get(userID)
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.tokens))
	copy(out, e.tokens)
	return out
}

// Disconnect clears the connection handle only. Tokens and location survive
// so push notifications can still be delivered.
func (d *Directory) Disconnect(userID string) {
	e := d.get(userID)
	if e == nil {
		return
	}
	e.mu.Lock()
	e.conn = nil
	e.mu.Unlock()
}

// SetAvailability updates the user's availability status.
func (d *Directory) SetAvailability(userID string, a domain.Availability) {
	e := d.getOrCreate(userID)
	e.mu.Lock()
	e.availability = a
	e.mu.Unlock()
}

// Availability returns the user's availability. Unknown users are inactive.
func (d *Directory) Availability(userID string) domain.Availability {
	e := d.get(userID)
	if e == nil {
		return domain.AvailabilityInactive
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.availability
}
