package engine

import (
	"context"
	"errors"

	"github.com/ioustamora/datamesh-sub004/internal/codec"
	"github.com/ioustamora/datamesh-sub004/internal/dht"
	"github.com/ioustamora/datamesh-sub004/internal/keyring"
	"github.com/ioustamora/datamesh-sub004/internal/metadata"
	"github.com/ioustamora/datamesh-sub004/internal/model"
	"github.com/ioustamora/datamesh-sub004/internal/network"
	"github.com/ioustamora/datamesh-sub004/internal/shardrouter"
)

// mapError is the single switch translating every upstream package's
// sentinel errors into the ErrorKind surface StorageEngine promises
// callers. No package other than engine needs to know about ErrorKind.
func mapError(err error) *OperationError {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, model.ErrInvalidPlan), errors.Is(err, codec.ErrInvalidPlan):
		return &OperationError{Kind: ErrInvalidPlan, Cause: err}
	case errors.Is(err, codec.ErrFileTooLarge):
		return &OperationError{Kind: ErrFileTooLarge, Cause: err}
	case errors.Is(err, codec.ErrCorruptCiphertext):
		return &OperationError{Kind: ErrCorruptCiphertext, Cause: err}
	case errors.Is(err, codec.ErrInsufficientShards), errors.Is(err, codec.ErrShardSizeMismatch), errors.Is(err, codec.ErrBadHeader):
		return &OperationError{Kind: ErrCorruptCiphertext, Cause: err}

	case errors.Is(err, keyring.ErrKeyFileUnreadable):
		return &OperationError{Kind: ErrKeyFileUnreadable, Cause: err}
	case errors.Is(err, keyring.ErrKeyFileCorrupted):
		return &OperationError{Kind: ErrKeyFileCorrupted, Cause: err}
	case errors.Is(err, keyring.ErrDecryptionFailed), errors.Is(err, keyring.ErrBadEnvelope):
		return &OperationError{Kind: ErrDecryptionFailed, Cause: err}

	case errors.Is(err, dht.ErrNoPeersKnown):
		return &OperationError{Kind: ErrNoPeersKnown, Cause: err}
	case errors.Is(err, dht.ErrPutTimedOut):
		return &OperationError{Kind: ErrPutTimedOut, Cause: err}
	case errors.Is(err, dht.ErrGetTimedOut):
		return &OperationError{Kind: ErrGetTimedOut, Cause: err}
	case errors.Is(err, dht.ErrRecordTooLarge):
		return &OperationError{Kind: ErrRecordTooLarge, Cause: err}
	case isTransportError(err):
		return &OperationError{Kind: ErrTransportError, Cause: err}

	case errors.Is(err, shardrouter.ErrPutQuorumNotMet):
		return &OperationError{Kind: ErrPutTimedOut, Cause: err}
	case errors.Is(err, shardrouter.ErrInsufficientShardsAvailable):
		return &OperationError{Kind: ErrInsufficientShardsAvail, Cause: err}
	case errors.Is(err, shardrouter.ErrShardCountMismatch):
		return &OperationError{Kind: ErrInvariantViolation, Cause: err}

	case errors.Is(err, network.ErrQueueFull):
		return &OperationError{Kind: ErrQueueFull, Cause: err}
	case errors.Is(err, network.ErrTimedOut):
		return &OperationError{Kind: ErrTimedOut, Cause: err}
	case errors.Is(err, network.ErrCancelled):
		return &OperationError{Kind: ErrCancelled, Cause: err}
	case errors.Is(err, network.ErrActorStopped):
		return &OperationError{Kind: ErrCancelled, Cause: err}

	case errors.Is(err, metadata.ErrUnknownFile), errors.Is(err, metadata.ErrUnknownName):
		return &OperationError{Kind: ErrUnknownName, Cause: err}
	case errors.Is(err, metadata.ErrNameAlreadyExists):
		return &OperationError{Kind: ErrNameAlreadyExists, Cause: err}
	case errors.Is(err, metadata.ErrMetadataCorrupt):
		return &OperationError{Kind: ErrMetadataCorrupt, Cause: err}
	case errors.Is(err, metadata.ErrMetadataFull):
		return &OperationError{Kind: ErrMetadataFull, Cause: err}
	case errors.Is(err, metadata.ErrConstraintViolation):
		return &OperationError{Kind: ErrConstraintViolation, Cause: err}

	case errors.Is(err, context.Canceled):
		return &OperationError{Kind: ErrCancelled, Cause: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &OperationError{Kind: ErrTimedOut, Cause: err}

	default:
		return &OperationError{Kind: ErrUnknown, Cause: err}
	}
}

func isTransportError(err error) bool {
	var te *dht.TransportError
	return errors.As(err, &te)
}
