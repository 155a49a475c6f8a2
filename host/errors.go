package host

import "errors"

var (
	// ErrAlreadyLoaded is returned when plugins are registered
	// or loaded after the load event was dispatched.
	ErrAlreadyLoaded = errors.New("plugins already loaded")

	// ErrNoEntries is returned when project has no entry points.
	ErrNoEntries = errors.New("no entry points configured")
)
