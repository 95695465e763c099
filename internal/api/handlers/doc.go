// Package handlers implements the HTTP handlers for the marketmaker
// API. Interactive operations are registered through Huma; operational
// endpoints (health, metrics) attach straight to Echo.
package handlers

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Error string `json:"error" example:"something went wrong"`
}

// StatusResponse is a generic status response body.
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}
