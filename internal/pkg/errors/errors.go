package errors

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalid      = errors.New("invalid")
	ErrConflict     = errors.New("conflict")
	ErrTooMany      = errors.New("too many requests")
	ErrInternal     = errors.New("internal")

	ErrDimensionMismatch      = errors.New("embedding dimension mismatch")
	ErrUnsupportedFile        = errors.New("unsupported file type")
	ErrEmptyDocument          = errors.New("document has no extractable text")
	ErrChunkEmbeddingMismatch = errors.New("chunk and embedding counts differ")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}
