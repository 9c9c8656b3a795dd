package objectio

import (
	"errors"
	"io/fs"

	"github.com/warpcatalog/warpcatalog/pkg/engerr"
)

// WrapIOFailure classifies a backend error into the engine's taxonomy.
// spec.md §6 names a distinct IOFailure for every ObjectIO error; since
// §7's Code enum has no IOFailure entry, an object-store failure is
// treated as a retryable backend failure (Unavailable) unless it is
// plainly a missing object, matching how storage-adapter BackendUnavailable
// errors are handled everywhere else in the engine. Backend
// implementations (fileio, s3io, gcsio) call this to normalize their own
// client library errors before returning them.
func WrapIOFailure(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return engerr.Wrap(engerr.NotFound, err, format, args...)
	}
	return engerr.Wrap(engerr.Unavailable, err, format, args...)
}
