package model

import "errors"

// Sentinel errors. Callers match them with errors.Is; the RPC layer maps them to status codes.
var (
	ErrInvalidLoanParameters  = errors.New("invalid loan parameters")
	ErrNotFound               = errors.New("not found")
	ErrPersistence            = errors.New("persistence failure")
	ErrDelivery               = errors.New("delivery failure")
	ErrConcurrentModification = errors.New("concurrent modification")
)
