package models

import "encoding/json"

// ServiceResult is the response envelope the consultation API wraps most
// payloads in. Some deployments return the payload bare; Data stays raw so
// callers can unwrap either shape.
type ServiceResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}
