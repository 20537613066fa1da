package errors

import (
	pkgerrors "github.com/Conte777/ScraperPool/pkg/errors"
)

var (
	// ErrNoAccountAvailable is returned when no worker account can serve a user
	ErrNoAccountAvailable = pkgerrors.NewNoAccountAvailableError("no worker account currently available for this platform")

	// ErrAccountNotFound is returned when an account does not exist
	ErrAccountNotFound = pkgerrors.NewNotFoundError("account not found")

	// ErrUnknownPlatform is returned for an unsupported platform name
	ErrUnknownPlatform = pkgerrors.NewValidationError("unknown platform")

	// ErrInvalidAccountID is returned when an account id is empty
	ErrInvalidAccountID = pkgerrors.NewValidationError("account id is required")

	// ErrNilClient is returned when a nil client is registered
	ErrNilClient = pkgerrors.NewValidationError("client cannot be nil")

	// ErrClientExists is returned when an account already has a live client
	ErrClientExists = pkgerrors.NewValidationError("client already registered for account")

	// ErrMissingCredentials is returned when required credentials are absent
	ErrMissingCredentials = pkgerrors.NewValidationError("account credentials are incomplete")

	// ErrNotConnected is returned when a request is made on a disconnected client
	ErrNotConnected = pkgerrors.NewTransientConnectionError("client is not connected", nil)

	// ErrUnsupportedMethod is returned for a method the platform client cannot perform
	ErrUnsupportedMethod = pkgerrors.NewValidationError("unsupported method")

	// ErrUnauthorized is returned when a connected client reports no valid session
	ErrUnauthorized = pkgerrors.NewAuthorizationError("account session is not authorized", nil)

	// ErrNoLiveClient is returned when a pool entry holds no client
	ErrNoLiveClient = pkgerrors.NewTransientConnectionError("pool entry has no live client", nil)

	// ErrPoolClosed is returned when the pool has been shut down
	ErrPoolClosed = pkgerrors.NewTransientConnectionError("pool is shut down", nil)
)
