package network

import "errors"

var (
	// ErrQueueFull is returned to non-blocking senders when the inbound
	// command queue is at capacity.
	ErrQueueFull = errors.New("network: command queue full")
	// ErrTimedOut is the reply an expired command receives.
	ErrTimedOut = errors.New("network: command timed out")
	// ErrCancelled is the reply outstanding commands receive when
	// Shutdown drains the queue.
	ErrCancelled = errors.New("network: actor shutting down")
	// ErrActorStopped is returned by Client calls made after the actor
	// loop has already exited.
	ErrActorStopped = errors.New("network: actor stopped")
	// ErrPeerBlacklisted is returned by ConnectPeer when HealthMonitor's
	// cooldown for the target peer has not yet elapsed.
	ErrPeerBlacklisted = errors.New("network: peer blacklisted, cooldown active")
)
