// Package transfer tracks asynchronous region transfer requests.
//
// A request is registered when it is submitted, finished by the worker that
// runs it, and observed either by polling Check or by a Waiter bound to it
// (or to a group of requests) that receives one deferred reply once every
// bound request has finished. Queue runs submitted jobs on a worker pool and
// finishes their tracker entries.
package transfer

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRegistered is returned when registering an id twice.
	ErrAlreadyRegistered = errors.New("transfer request already registered")

	// ErrUnknownRequest is returned for ids the tracker does not hold.
	ErrUnknownRequest = errors.New("unknown transfer request")

	// ErrAlreadyFinished is returned when finishing a request twice.
	ErrAlreadyFinished = errors.New("transfer request already finished")

	// ErrAlreadyBound is returned when binding a waiter to a request that
	// already has one.
	ErrAlreadyBound = errors.New("transfer request already has a waiter")

	// ErrQueueFull is returned when the worker queue cannot take a job.
	ErrQueueFull = errors.New("transfer queue full")
)

// Status is the observable state of a transfer request.
type Status int

const (
	// StatusNotFound means the tracker holds no entry for the id: it was
	// never registered, or it finished and was already collected.
	StatusNotFound Status = iota
	// StatusPending means the request is still running.
	StatusPending
	// StatusComplete means the request finished successfully.
	StatusComplete
	// StatusFailed means the request finished with an error.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusNotFound:
		return "not_found"
	case StatusPending:
		return "pending"
	case StatusComplete:
		return "complete"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Finished reports whether s is a terminal status.
func (s Status) Finished() bool {
	return s == StatusComplete || s == StatusFailed
}

// ResponseKind selects the shape of a deferred reply.
type ResponseKind int

const (
	// ResponseWait answers a wait on a single request.
	ResponseWait ResponseKind = iota
	// ResponseWaitAll answers a wait on a group of requests.
	ResponseWaitAll
)

func (k ResponseKind) String() string {
	if k == ResponseWaitAll {
		return "wait_all"
	}
	return "wait"
}

// Reply is delivered to a Waiter once every request bound to it finished.
type Reply struct {
	Kind ResponseKind
	IDs  []uint64

	// Status is StatusFailed if any bound request failed, else StatusComplete.
	Status Status

	// Err is the first failure among the bound requests.
	Err error
}

// Waiter receives a deferred reply.
type Waiter interface {
	Respond(Reply)
}

// WaiterFunc adapts a function to Waiter.
type WaiterFunc func(Reply)

func (f WaiterFunc) Respond(r Reply) { f(r) }

// ChanWaiter delivers the reply on a buffered channel.
type ChanWaiter chan Reply

// NewChanWaiter returns a waiter whose reply can be received from the channel.
func NewChanWaiter() ChanWaiter {
	return make(ChanWaiter, 1)
}

func (c ChanWaiter) Respond(r Reply) {
	c <- r
}

// Metrics records tracker activity. A nil Metrics disables collection.
type Metrics interface {
	RecordTransition(status Status)
	RecordReply(kind ResponseKind, requests int)
	RecordInFlight(n int)
}
