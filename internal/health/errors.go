package health

import "errors"

// ErrUnknownPeer is returned by Reputation for a
// peer the monitor has never observed.
var ErrUnknownPeer = errors.New("health: unknown peer")
