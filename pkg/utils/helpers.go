package utils

import "github.com/google/uuid"

// GenerateRequestID produces the opaque id stamped onto every request/
// response pair for tracing.
func GenerateRequestID() string {
	return uuid.New().String()
}
