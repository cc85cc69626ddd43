package errors

import "errors"

// Domain errors
var (
	// Catalog errors
	ErrToolNotFound     = errors.New("tool not found in catalog")
	ErrMissingParameter = errors.New("missing required parameter")
	ErrEmptyTemplate    = errors.New("tool command template cannot be empty")

	// Safety errors
	ErrCommandDenied = errors.New("command denied by safety policy")
	ErrPrivateTarget = errors.New("target resolves to a private or loopback address")

	// Session errors
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionFinished  = errors.New("session is already finished")
	ErrInvalidSessionID = errors.New("invalid session ID")
	ErrEmptyTarget      = errors.New("target cannot be empty")
	ErrEmptyOperator    = errors.New("operator cannot be empty")

	// Collaborator errors
	ErrCollaboratorUnavailable = errors.New("recommendation collaborator unavailable")
	ErrUnparsableResponse      = errors.New("collaborator returned an unparsable response")

	// Configuration errors
	ErrMissingAPIKey = errors.New("API key not configured")

	// Repository errors
	ErrRepositoryOperation = errors.New("repository operation failed")
	ErrSerializationFailed = errors.New("serialization failed")
)
