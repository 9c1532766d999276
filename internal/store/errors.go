package store

import "errors"

var (
	// ErrStoreCorrupt is returned when the accounts file exists but cannot be parsed.
	// The file is left untouched so the credentials can be recovered by hand.
	ErrStoreCorrupt = errors.New("account store corrupt")

	// ErrIO is returned for read or write failures on the accounts file.
	ErrIO = errors.New("account store unavailable")

	// ErrNoChange may be returned by a Mutate callback to hand back its
	// result without saving. Mutate then returns a nil error.
	ErrNoChange = errors.New("no change")
)
