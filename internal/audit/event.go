// Package audit records certificate and binding changes made on remote hosts.
//
// Audit logs are separate from technical logs:
//   - Every event is one JSON line
//   - Events are hash-chained so tampering is detectable
//   - Secrets (PFX passwords, certificate content) are never written
//   - Timestamps are UTC
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// EventType represents the category of audit event.
type EventType string

const (
	// Read events
	EventInventoryRead      EventType = "INVENTORY_READ"
	EventBindingsDiscovered EventType = "BINDINGS_DISCOVERED"

	// Import events
	EventCertStaged   EventType = "CERT_STAGED"
	EventCertImported EventType = "CERT_IMPORTED"

	// Binding events
	EventBindingReconciled       EventType = "BINDING_RECONCILED"
	EventReconciliationCompleted EventType = "RECONCILIATION_COMPLETED"
)

// Result represents the outcome of an audited operation.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
)

// Actor represents who performed the action.
type Actor struct {
	Type string `json:"type"`           // "user", "service"
	ID   string `json:"id"`             // username or service identifier
	Host string `json:"host,omitempty"` // machine the tool ran on
}

// Object represents what was acted upon.
type Object struct {
	Type       string `json:"type"`                 // "store", "binding", "site"
	Host       string `json:"host,omitempty"`       // remote machine
	Store      string `json:"store,omitempty"`      // certificate store name
	Thumbprint string `json:"thumbprint,omitempty"` // certificate thumbprint
	Site       string `json:"site,omitempty"`       // IIS site name
	Endpoint   string `json:"endpoint,omitempty"`   // ip:port:hostheader
	Path       string `json:"path,omitempty"`       // local source file
}

// Context provides additional details about the operation.
type Context struct {
	RunID    string `json:"run_id,omitempty"`    // groups the events of one command
	Method   string `json:"method,omitempty"`    // import method
	Variant  string `json:"variant,omitempty"`   // certutil variant
	ExitCode int    `json:"exit_code,omitempty"` // import utility exit code
	Mode     string `json:"mode,omitempty"`      // "single" or "renewal"
	Step     string `json:"step,omitempty"`      // failing reconciliation step
	Items    int    `json:"items,omitempty"`     // records read or touched
	Reason   string `json:"reason,omitempty"`    // failure reason
}

// Event represents a single audit log entry.
type Event struct {
	ID        string    `json:"id"`
	EventType EventType `json:"event_type"`
	Timestamp string    `json:"timestamp"` // RFC3339 UTC
	Actor     Actor     `json:"actor"`
	Object    Object    `json:"object"`
	Context   Context   `json:"context,omitempty"`
	Result    Result    `json:"result"`
	HashPrev  string    `json:"hash_prev"` // SHA-256 hash of previous event
	Hash      string    `json:"hash"`      // SHA-256 hash of this event
}

// NewEvent creates a new audit event with current timestamp and actor info.
func NewEvent(eventType EventType, result Result) *Event {
	hostname, _ := os.Hostname()
	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME") // Windows
	}
	if username == "" {
		username = "unknown"
	}

	return &Event{
		ID:        uuid.NewString(),
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Actor: Actor{
			Type: "user",
			ID:   username,
			Host: hostname,
		},
		Result: result,
	}
}

// NewRunID returns an identifier grouping the events of one command.
func NewRunID() string {
	return uuid.NewString()
}

// WithObject sets the object field.
func (e *Event) WithObject(obj Object) *Event {
	e.Object = obj
	return e
}

// WithContext sets the context field.
func (e *Event) WithContext(ctx Context) *Event {
	e.Context = ctx
	return e
}

// WithActor overrides the default actor.
func (e *Event) WithActor(actor Actor) *Event {
	e.Actor = actor
	return e
}

// Validate checks that required fields are present.
func (e *Event) Validate() error {
	if e.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if e.Timestamp == "" {
		return fmt.Errorf("timestamp is required")
	}
	if e.Actor.Type == "" || e.Actor.ID == "" {
		return fmt.Errorf("actor type and id are required")
	}
	if e.Result == "" {
		return fmt.Errorf("result is required")
	}
	return nil
}

// CanonicalJSON returns the event as canonical JSON for hashing.
// Excludes the Hash field to allow hash calculation.
func (e *Event) CanonicalJSON() ([]byte, error) {
	type eventForHash struct {
		ID        string    `json:"id"`
		EventType EventType `json:"event_type"`
		Timestamp string    `json:"timestamp"`
		Actor     Actor     `json:"actor"`
		Object    Object    `json:"object"`
		Context   Context   `json:"context,omitempty"`
		Result    Result    `json:"result"`
		HashPrev  string    `json:"hash_prev"`
	}

	canonical := eventForHash{
		ID:        e.ID,
		EventType: e.EventType,
		Timestamp: e.Timestamp,
		Actor:     e.Actor,
		Object:    e.Object,
		Context:   e.Context,
		Result:    e.Result,
		HashPrev:  e.HashPrev,
	}

	return json.Marshal(canonical)
}

// JSON returns the full event as JSON.
func (e *Event) JSON() ([]byte, error) {
	return json.Marshal(e)
}
