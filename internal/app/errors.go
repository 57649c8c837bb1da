package app

import "errors"

var (
	// ErrEmailAlreadyExists is shown to end users on duplicate registration.
	ErrEmailAlreadyExists = errors.New("Email already exists")

	// ErrInvalidCredentials is shown on failed login and deliberately does
	// not distinguish unknown email from wrong password.
	ErrInvalidCredentials = errors.New("Invalid credentials")

	ErrNameEmailPasswordRequired = errors.New("name, email and password required")
	ErrEmailAndPasswordRequired  = errors.New("email and password required")
	ErrUnauthorized              = errors.New("unauthorized")

	// ErrReportNotFound covers both missing ids and ids owned by another
	// user, so lookups never reveal that a foreign report exists.
	ErrReportNotFound = errors.New("report not found")

	ErrFileTooLarge = errors.New("file too large")
	ErrFileRequired = errors.New("file required")
)
