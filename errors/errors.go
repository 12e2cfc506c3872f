package errors

import "fmt"

var (
	ErrWorkerPanic     = fmt.Errorf("worker panic")
	ErrInvalidToken    = fmt.Errorf("invalid or expired token")
	ErrConnectionGone  = fmt.Errorf("connection closed")
	ErrDeliveryDropped = fmt.Errorf("delivery dropped, send buffer full")
	ErrEmptyWordList   = fmt.Errorf("no censored words have been loaded")
)
