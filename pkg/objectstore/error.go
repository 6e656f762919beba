package objectstore

import "github.com/pkg/errors"

type errBucketAlreadyExists struct{}

func (errBucketAlreadyExists) Error() string       { return "bucket already exists" }
func (errBucketAlreadyExists) AlreadyExists() bool { return true }

type errBucketNotFound struct{}

func (errBucketNotFound) Error() string  { return "bucket not found" }
func (errBucketNotFound) NotFound() bool { return true }

// IsAlreadyExists reports whether the error marks an already existing bucket
func IsAlreadyExists(err error) bool {
	type alreadyExists interface {
		AlreadyExists() bool
	}
	e, ok := errors.Cause(err).(alreadyExists)
	return ok && e.AlreadyExists()
}

// IsNotFound reports whether the error marks a missing bucket
func IsNotFound(err error) bool {
	type notFound interface {
		NotFound() bool
	}
	e, ok := errors.Cause(err).(notFound)
	return ok && e.NotFound()
}
