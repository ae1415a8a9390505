// Package id provides centralized ID generation for the app manager.
//
// Two formats are in use:
//   - ULIDs for identifiers that benefit from time ordering in logs
//     (sessions, dispatched events, request traces). These carry a type
//     prefix (sess_*, evt_*, trc_*).
//   - UUIDs for application instance ids, which are handed to the runtime
//     and window managers and must match the format those collaborators expect.
//
// Download ids are not generated here: they come from the download manager's
// monotonic counter so they stay device-unique across a configured seed.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// AppInstanceID identifies one running instance of an application
type AppInstanceID string

// SessionID identifies one launch session of an application instance
type SessionID string

// EventID identifies a dispatched lifecycle event
type EventID string

// TraceID correlates one API request across the manager and its collaborators
type TraceID string

const (
	SessionPrefix = "sess"
	EventPrefix   = "evt"
	TracePrefix   = "trc"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

// NewGenerator creates a new ULID generator
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// NewGeneratorWithEntropy creates a generator with custom entropy source
// Useful for testing with deterministic entropy
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewSessionID generates a new session ID
func (g *Generator) NewSessionID() SessionID {
	return SessionID(g.GenerateWithPrefix(SessionPrefix))
}

// NewEventID generates a new event ID
func (g *Generator) NewEventID() EventID {
	return EventID(g.GenerateWithPrefix(EventPrefix))
}

// NewTraceID generates a new trace ID
func (g *Generator) NewTraceID() TraceID {
	return TraceID(g.GenerateWithPrefix(TracePrefix))
}

// NewAppInstanceID generates a new application instance ID
func NewAppInstanceID() AppInstanceID {
	return AppInstanceID(uuid.New().String())
}

func (id AppInstanceID) String() string { return string(id) }
func (id SessionID) String() string     { return string(id) }
func (id EventID) String() string       { return string(id) }
func (id TraceID) String() string       { return string(id) }

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}

// IsValidInstanceID checks if an ID string is a valid application instance ID
func IsValidInstanceID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Timestamp extracts the timestamp from a ULID
func Timestamp(id string) (time.Time, error) {
	parsed, err := ulid.Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
