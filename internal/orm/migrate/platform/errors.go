package platform

import "errors"

var (
	// ErrUnknownPlatform is returned by Lookup for an unsupported platform name
	ErrUnknownPlatform = errors.New("unknown database platform")

	// ErrNotSupported is returned when the platform cannot express a change in DDL
	ErrNotSupported = errors.New("not supported by platform")
)
