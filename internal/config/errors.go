package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoSeed is returned when no seed URL is given.
	ErrNoSeed = errors.New("no seed URL specified")

	// ErrInvalidSeed is returned when the seed is not an http or https URL.
	ErrInvalidSeed = errors.New("invalid seed URL")

	// ErrNoContainer is returned when no container spec is configured on
	// the command line or in the profile file.
	ErrNoContainer = errors.New("no container specified: use --container and --target or a profile")

	// ErrNoContainerChild is returned when the container spec has no child.
	ErrNoContainerChild = errors.New("container spec has no target element")

	// ErrInvalidMaxWorkers is returned when the worker count is not positive.
	ErrInvalidMaxWorkers = errors.New("invalid worker count: must be positive")

	// ErrInvalidMaxConnections is returned when the connection cap is not positive.
	ErrInvalidMaxConnections = errors.New("invalid max connections: must be positive")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRetryAttempts is returned when the attempt count is not positive.
	ErrInvalidRetryAttempts = errors.New("invalid retry attempts: must be positive")

	// ErrNegativeDuration is returned when a backoff, pacing, checkpoint or
	// drain duration is negative.
	ErrNegativeDuration = errors.New("invalid duration: must be non-negative")

	// ErrInvalidMaxRestores is returned when the restore limit is negative.
	ErrInvalidMaxRestores = errors.New("invalid max restores: must be non-negative")

	// ErrInvalidRate is returned when the request rate is negative.
	ErrInvalidRate = errors.New("invalid request rate: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrUnknownSink is returned for a sink other than text or image.
	ErrUnknownSink = errors.New("unknown sink: must be text or image")

	// ErrUnknownBackend is returned for a checkpoint backend other than
	// json or sqlite.
	ErrUnknownBackend = errors.New("unknown checkpoint backend: must be json or sqlite")
)
