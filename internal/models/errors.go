package models

import (
	"errors"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation error")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrEmptyDocument       = errors.New("no extractable text")

	ErrNoCostLogs      = errors.New("no cost logs found")
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)
