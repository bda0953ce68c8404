package errors

import "fmt"

var (
	// Connection-scoped failures. None of these is fatal to the process.
	ErrUnauthorized     = fmt.Errorf("invalid or expired credential")
	ErrNotFound         = fmt.Errorf("referenced entity does not exist")
	ErrPermission       = fmt.Errorf("action requires a membership the caller does not have")
	ErrStoreUnavailable = fmt.Errorf("durable store call failed")

	ErrUserAlreadyExists  = fmt.Errorf("a user with this email already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid email or password")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")

	ErrInvalidRoomID = fmt.Errorf("malformed room identifier")
	ErrInvalidEvent  = fmt.Errorf("malformed or unknown inbound event")

	ErrWorkerPanic = fmt.Errorf("worker panic")
)
