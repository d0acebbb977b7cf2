package app

import "errors"

// Sentinel errors whose messages are shown to end users verbatim.
var (
	ErrRegistrationFieldsRequired = errors.New("Email, password, and name are required")
	ErrEmailAndPasswordRequired   = errors.New("Email and password are required")
	ErrEmailTaken                 = errors.New("Email already registered")

	// ErrInvalidCredentials covers both unknown email and wrong password so
	// responses do not enable account enumeration.
	ErrInvalidCredentials = errors.New("Invalid email or password")

	ErrMissingFields = errors.New("Missing required fields")
)
