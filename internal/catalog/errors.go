package catalog

import "errors"

// Validation errors are returned before any remote call is made.
var (
	ErrEmptyTag      = errors.New("tag is empty")
	ErrTagLimit      = errors.New("tag limit reached")
	ErrDuplicateTag  = errors.New("tag already present")
	ErrEmptyName     = errors.New("playlist name is empty")
	ErrDuplicateName = errors.New("playlist already exists")
	ErrSameName      = errors.New("new name equals old name")
	ErrInvalidImport = errors.New("invalid import document")
)

var (
	// ErrNotFound is returned for playlists missing locally or remotely.
	ErrNotFound = errors.New("not found")
	// ErrRemote wraps every failure of the remote store.
	ErrRemote = errors.New("remote store")
)

// IsValidation reports whether err was raised by local validation.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrEmptyTag, ErrTagLimit, ErrDuplicateTag,
		ErrEmptyName, ErrDuplicateName, ErrSameName,
		ErrInvalidImport,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
