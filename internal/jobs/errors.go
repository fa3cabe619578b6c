package jobs

import "errors"

var (
	ErrJobNotCompleted   = errors.New("job not completed")
	ErrRunInProgress     = errors.New("job run already in progress")
	ErrQueueFull         = errors.New("run queue is full")
	ErrDispatcherClosed  = errors.New("run dispatcher is closed")
	ErrDispatcherStarted = errors.New("run dispatcher already started")
)
