package service

import "errors"

// Sentinel errors shared across services. Handlers translate these into the
// response package's error codes; services never speak HTTP.
var (
	ErrNotFound            = errors.New("resource not found")
	ErrTestInactive        = errors.New("test is not active")
	ErrUnauthorized        = errors.New("session belongs to another candidate")
	ErrAlreadyCompleted    = errors.New("session already completed")
	ErrSessionExpired      = errors.New("session time limit has passed")
	ErrSessionNotCompleted = errors.New("session not completed")
	ErrNoRankData          = errors.New("no completed sessions for this test")
	ErrNoQuestions         = errors.New("test has no questions")
	ErrNotOwner            = errors.New("not the owner of this resource")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUsernameTaken       = errors.New("username already taken")
)
