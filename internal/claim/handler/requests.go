package handler

import (
	"fmt"
	"strings"

	"rosterclaim/internal/claim/models"
	"rosterclaim/pkg/platform/httputil"
)

// Consent actions accepted by the migrate endpoint.
const (
	ActionAccept = "accept"
	ActionReject = "reject"
)

// RecordRequest names one shadow record.
type RecordRequest struct {
	Channel   string `json:"channel"`
	UserExtID string `json:"userExtId"`
}

func (r RecordRequest) Key() models.Key {
	return models.Key{Channel: strings.TrimSpace(r.Channel), UserExtID: strings.TrimSpace(r.UserExtID)}
}

func (r RecordRequest) Validate() error {
	if err := r.Key().Validate(); err != nil {
		return fmt.Errorf("%w: %w", httputil.ErrBadRequest, err)
	}
	return nil
}

// ConsentRequest is a user's decision on one shadow record.
type ConsentRequest struct {
	RecordRequest
	Action string `json:"action"`
}

// Consent reports whether the user accepted the migration.
func (r ConsentRequest) Consent() bool {
	return normalizeAction(r.Action) == ActionAccept
}

// MigrateRequest is the body of POST /v1/user/migrate.
type MigrateRequest struct {
	Request ConsentRequest `json:"request"`
}

func (r MigrateRequest) Validate() error {
	if err := r.Request.RecordRequest.Validate(); err != nil {
		return err
	}
	switch normalizeAction(r.Request.Action) {
	case ActionAccept, ActionReject:
		return nil
	default:
		return fmt.Errorf("%w: action must be %q or %q", httputil.ErrBadRequest, ActionAccept, ActionReject)
	}
}

// OutcomeResponse reports how a single record was handled.
type OutcomeResponse struct {
	RequestID string         `json:"request_id,omitempty"`
	Outcome   models.Outcome `json:"outcome"`
}

type SyncResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Status    string `json:"status"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
