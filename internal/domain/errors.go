package domain

import "errors"

var (
	// ErrMalformedPayload rejects a webhook payload missing required fields.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrInsufficientData means a series is too short for the requested
	// indicators. Callers treat it as "no signals computable", not a failure.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrDestinationUnresolved means no destination matched a notification.
	ErrDestinationUnresolved = errors.New("destination unresolved")
)
