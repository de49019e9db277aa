package storage

import "errors"

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrProjectExists   = errors.New("project already exists")
)

var (
	ErrFileTooLarge = errors.New("file size exceeds limit")
)
