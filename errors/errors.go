package errors

import "fmt"

var (
	ErrWorkerPanic    = fmt.Errorf("worker panic")
	ErrInvalidPayload = fmt.Errorf("invalid event payload")
	ErrEmptyContent   = fmt.Errorf("message content is empty")
	ErrContentTooLong = fmt.Errorf("message content exceeds the configured limit")
	ErrNotFound       = fmt.Errorf("message not found")
	ErrAuthFailed     = fmt.Errorf("remote authentication failed")
	ErrSyncExhausted  = fmt.Errorf("sync attempts exhausted")
)
