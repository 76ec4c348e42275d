// Package tasks defines the asynq task types shared between the API
// process that enqueues them and the scheduler process that runs them.
package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// TypeConversionCheck is the delayed check that fires when a primary
	// lead's conversion window closes.
	TypeConversionCheck = "fallback:conversion_check"

	// TypeBusinessGeocode resolves coordinates for a business that has
	// none cached yet.
	TypeBusinessGeocode = "geo:business_geocode"
)

// ConversionCheckPayload identifies the lead whose window closed.
type ConversionCheckPayload struct {
	ServiceRequestID uuid.UUID `json:"serviceRequestId"`
	LeadID           uuid.UUID `json:"leadId"`
}

// NewConversionCheckTask builds the conversion check task.
func NewConversionCheckTask(serviceRequestID, leadID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(ConversionCheckPayload{ServiceRequestID: serviceRequestID, LeadID: leadID})
	if err != nil {
		return nil, fmt.Errorf("marshal conversion check payload: %w", err)
	}
	return asynq.NewTask(TypeConversionCheck, payload), nil
}

// ParseConversionCheck decodes a conversion check task payload.
func ParseConversionCheck(t *asynq.Task) (ConversionCheckPayload, error) {
	var payload ConversionCheckPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return ConversionCheckPayload{}, fmt.Errorf("parse conversion check payload: %w", err)
	}
	return payload, nil
}

// BusinessGeocodePayload identifies the business to geocode.
type BusinessGeocodePayload struct {
	BusinessID uuid.UUID `json:"businessId"`
}

// NewBusinessGeocodeTask builds the geocode task.
func NewBusinessGeocodeTask(businessID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(BusinessGeocodePayload{BusinessID: businessID})
	if err != nil {
		return nil, fmt.Errorf("marshal geocode payload: %w", err)
	}
	return asynq.NewTask(TypeBusinessGeocode, payload), nil
}

// ParseBusinessGeocode decodes a geocode task payload.
func ParseBusinessGeocode(t *asynq.Task) (BusinessGeocodePayload, error) {
	var payload BusinessGeocodePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return BusinessGeocodePayload{}, fmt.Errorf("parse geocode payload: %w", err)
	}
	return payload, nil
}
