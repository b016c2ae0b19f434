package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed          = fmt.Errorf("authentication failed")
	ErrNotAuthenticated    = fmt.Errorf("not authenticated")
	ErrMissingCode         = fmt.Errorf("missing authorization code")
	ErrStateMismatch       = fmt.Errorf("oauth state mismatch")
	ErrTokenExchange       = fmt.Errorf("authorization code exchange failed")
	ErrRefreshFailed       = fmt.Errorf("token refresh failed")
	ErrInvalidRefreshToken = fmt.Errorf("invalid refresh token")
	ErrNoRefreshToken      = fmt.Errorf("no refresh token available")
	ErrTimeout             = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Store errors
	ErrNotFound      = fmt.Errorf("record not found")
	ErrAlreadyExists = fmt.Errorf("record already exists")
	ErrStore         = fmt.Errorf("record store failure")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
