package deploy

import "errors"

var (
	// ErrInheritance is returned when a bean extends an entity rather than a mapped superclass
	ErrInheritance = errors.New("invalid inheritance mapping")

	// ErrDuplicateBean is returned when two descriptors share a bean name
	ErrDuplicateBean = errors.New("bean is already registered")

	// ErrUnknownBean is returned when a bean name is not registered
	ErrUnknownBean = errors.New("unknown bean")

	// ErrUnknownTarget is returned when an association targets an unregistered bean
	ErrUnknownTarget = errors.New("association target is not registered")

	// ErrSequenceNotSupported is returned for platforms without sequences
	ErrSequenceNotSupported = errors.New("sequences are not supported by platform")

	// ErrInvalidDeployment is returned for malformed deployment files
	ErrInvalidDeployment = errors.New("invalid deployment")
)
