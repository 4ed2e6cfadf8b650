package core

import "errors"

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrArchived      = errors.New("resource is archived")
	ErrTagBranch     = errors.New("branch is a tag and read-only")
	ErrExists        = errors.New("resource already exists")
	ErrEmptyPassword = errors.New("refusing to set empty password")
	ErrAuth          = errors.New("authentication failed")
)
