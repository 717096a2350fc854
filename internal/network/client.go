package network

import "context"

// Client is the handle every other component uses to talk to an Actor:
// send a command, wait for its reply. Safe for concurrent use by
// multiple senders; commands from the same Client are FIFO, but Client
// itself is just a thin wrapper over the Actor's shared inbound channel
// so FIFO is per sending goroutine, matching spec.md §5's "per-sender
// FIFO" guarantee.
type Client struct {
	actor *Actor
}

// NewClient returns a Client bound to actor.
func NewClient(actor *Actor) *Client { return &Client{actor: actor} }

// PutShard enqueues a PutShard command and blocks for its reply.
func (c *Client) PutShard(ctx context.Context, shardKey [32]byte, index int, payload []byte, quorum int) (int, error) {
	reply := make(chan putShardReply, 1)
	cmd := putShardCmd{ctx: ctx, shardKey: shardKey, index: index, payload: payload, quorum: quorum, reply: reply}
	if err := c.enqueue(ctx, cmd); err != nil {
		return 0, err
	}
	r := <-reply
	return r.ackedPeers, r.err
}

// GetShard enqueues a GetShard command and blocks for its reply.
func (c *Client) GetShard(ctx context.Context, shardKey [32]byte, index int, quorum int) ([]byte, error) {
	reply := make(chan getShardReply, 1)
	cmd := getShardCmd{ctx: ctx, shardKey: shardKey, index: index, quorum: quorum, reply: reply}
	if err := c.enqueue(ctx, cmd); err != nil {
		return nil, err
	}
	r := <-reply
	return r.payload, r.err
}

// Provide enqueues a Provide command and blocks for its reply.
func (c *Client) Provide(ctx context.Context, shardKey [32]byte) error {
	reply := make(chan error, 1)
	cmd := provideCmd{ctx: ctx, shardKey: shardKey, reply: reply}
	if err := c.enqueue(ctx, cmd); err != nil {
		return err
	}
	return <-reply
}

// ConnectPeer enqueues a ConnectPeer command and blocks for its reply.
func (c *Client) ConnectPeer(ctx context.Context, multiaddr string) error {
	reply := make(chan error, 1)
	cmd := connectPeerCmd{ctx: ctx, multiaddr: multiaddr, reply: reply}
	if err := c.enqueue(ctx, cmd); err != nil {
		return err
	}
	return <-reply
}

// DisconnectPeer enqueues a DisconnectPeer command and blocks for its reply.
func (c *Client) DisconnectPeer(ctx context.Context, peerID string) error {
	reply := make(chan error, 1)
	cmd := disconnectPeerCmd{ctx: ctx, peerID: peerID, reply: reply}
	if err := c.enqueue(ctx, cmd); err != nil {
		return err
	}
	return <-reply
}

// Shutdown enqueues a Shutdown command, which causes the Actor's Run
// loop to drain remaining commands with ErrCancelled and exit.
func (c *Client) Shutdown(ctx context.Context) error {
	reply := make(chan error, 1)
	cmd := shutdownCmd{ctx: ctx, reply: reply}
	if err := c.enqueue(ctx, cmd); err != nil {
		return err
	}
	return <-reply
}

// enqueue blocks until the command is accepted onto the inbound queue,
// the caller's deadline expires, or the actor has already stopped. A
// blocking caller that times out here is reported as ErrTimedOut, the
// same outcome as a command that was accepted but then expired inside
// the actor; ErrQueueFull is reserved for a caller that explicitly
// opts out of blocking by passing an already-expired context.
func (c *Client) enqueue(ctx context.Context, cmd command) error {
	if ctx.Err() != nil {
		select {
		case c.actor.inbound <- cmd:
			return nil
		case <-c.actor.stopped:
			return ErrActorStopped
		default:
			return ErrQueueFull
		}
	}
	select {
	case c.actor.inbound <- cmd:
		return nil
	case <-ctx.Done():
		return ErrTimedOut
	case <-c.actor.stopped:
		return ErrActorStopped
	}
}
