package documents

import "errors"

var (
	// ErrNotFound indicates the document does not exist for the user.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidInput indicates a malformed request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmptyDocument indicates extraction produced no usable text.
	ErrEmptyDocument = errors.New("document contains no extractable text")
)
