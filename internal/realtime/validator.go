package realtime

import (
	"encoding/json"
	"errors"
	"fmt"

	"fleet_monitor/internal/models"

	"github.com/go-playground/validator/v10"
)

// RejectionReason classifies why a frame was dropped.
type RejectionReason string

const (
	ReasonMalformed    RejectionReason = "malformed"
	ReasonUnknownType  RejectionReason = "unknown_type"
	ReasonMissingField RejectionReason = "missing_field"
	ReasonInvalidField RejectionReason = "invalid_field"
)

// ErrRejected matches every *RejectionError via errors.Is.
var ErrRejected = errors.New("frame rejected")

// RejectionError describes a frame that did not match any accepted shape.
type RejectionError struct {
	Reason RejectionReason
	Detail string
	Err    error
}

func (e *RejectionError) Error() string {
	msg := "frame rejected (" + string(e.Reason) + ")"
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RejectionError) Unwrap() error { return e.Err }

func (e *RejectionError) Is(target error) bool { return target == ErrRejected }

func reject(reason RejectionReason, detail string, err error) *RejectionError {
	return &RejectionError{Reason: reason, Detail: detail, Err: err}
}

// wire shapes; pointers distinguish "absent" from "zero"
type wireFrame struct {
	Type *string         `json:"type" validate:"required,min=1"`
	Data json.RawMessage `json:"data"`
}

type wireData struct {
	MachineID *string `json:"machineId" validate:"required,min=1"`
	Status    *string `json:"status" validate:"required,oneof=running failed finished idle"`
	Timestamp *string `json:"timestamp"`
}

// Validator turns raw push frames into typed events.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate decodes raw into a DataEvent or KeepAlive. Any other input yields
// a *RejectionError; Validate never panics on untrusted input.
func (v *Validator) Validate(raw []byte) (models.Event, error) {
	var frame wireFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, reject(ReasonMalformed, "", err)
	}
	if err := v.validate.Struct(frame); err != nil {
		return nil, fieldRejection(err)
	}

	switch models.EventType(*frame.Type) {
	case models.EventTypeKeepAlive:
		return models.KeepAlive{}, nil
	case models.EventTypeData:
		return v.decodeData(frame.Data)
	default:
		return nil, reject(ReasonUnknownType, fmt.Sprintf("type %q", *frame.Type), nil)
	}
}

func (v *Validator) decodeData(raw json.RawMessage) (models.Event, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, reject(ReasonMissingField, "data", nil)
	}
	var data wireData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, reject(ReasonInvalidField, "data", err)
	}
	if err := v.validate.Struct(data); err != nil {
		return nil, fieldRejection(err)
	}

	ev := models.DataEvent{
		MachineID: *data.MachineID,
		Status:    models.MachineStatus(*data.Status),
	}
	if data.Timestamp != nil {
		ts, err := models.ParseTimestamp(*data.Timestamp)
		if err != nil {
			return nil, reject(ReasonInvalidField, "data.timestamp", err)
		}
		ev.Timestamp = ts
	}
	return ev, nil
}

// fieldRejection maps validator errors to a rejection reason. "required" and
// "min" (an empty string) mean a missing field; every other failed tag is an
// invalid one.
func fieldRejection(err error) *RejectionError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return reject(ReasonMalformed, "", err)
	}
	fe := verrs[0]
	reason := ReasonInvalidField
	switch fe.Tag() {
	case "required", "min":
		reason = ReasonMissingField
	}
	return reject(reason, jsonFieldName(fe.Field()), nil)
}

func jsonFieldName(goField string) string {
	switch goField {
	case "Type":
		return "type"
	case "MachineID":
		return "data.machineId"
	case "Status":
		return "data.status"
	default:
		return goField
	}
}
