// Package telemetry builds and publishes audit events for canonical users the
// claim engine touches.
package telemetry

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeAudit = "AUDIT"

	ObjectTypeUser       = "User"
	ObjectSubtypeMigrate = "migration_user"
	CorrelationProcessID = "processId"
	RollupLevel1         = "l1"
)

// Object identifies the record an event is about.
type Object struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`
}

// Correlation links the event to another entity, such as the upload process.
type Correlation struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Event is one audit record.
type Event struct {
	ID         string            `json:"mid"`
	Type       string            `json:"eid"`
	Timestamp  time.Time         `json:"ets"`
	Target     Object            `json:"object"`
	Correlated []Correlation     `json:"cdata,omitempty"`
	Rollup     map[string]string `json:"rollup,omitempty"`
	Context    map[string]string `json:"context,omitempty"`
	Properties map[string]any    `json:"edata,omitempty"`
}

// UserMigrated describes a canonical user updated from a shadow record.
type UserMigrated struct {
	UserID     string
	RootOrgID  string
	ProcessID  string
	Context    map[string]string
	Properties map[string]any
	At         time.Time
}

// NewUserMigratedEvent builds the audit event for a migrated user. The event is
// correlated to the upload process and rolled up under the root organisation.
func NewUserMigratedEvent(m UserMigrated) Event {
	ev := Event{
		ID:        uuid.NewString(),
		Type:      EventTypeAudit,
		Timestamp: m.At,
		Target: Object{
			ID:      m.UserID,
			Type:    ObjectTypeUser,
			Subtype: ObjectSubtypeMigrate,
		},
		Rollup:     map[string]string{RollupLevel1: m.RootOrgID},
		Context:    m.Context,
		Properties: m.Properties,
	}
	if m.ProcessID != "" {
		ev.Correlated = []Correlation{{ID: m.ProcessID, Type: CorrelationProcessID}}
	}
	return ev
}
