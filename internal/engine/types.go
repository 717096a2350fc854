package engine

import (
	"time"

	"github.com/ioustamora/datamesh-sub004/internal/model"
)

// PutFileParams bundles put_file's optional arguments.
type PutFileParams struct {
	Name      string
	Tags      []string
	Overwrite bool
	Plan      model.ShardPlan
}

// PutFileResult is put_file's success payload.
type PutFileResult struct {
	ContentKey [32]byte
	ByteSize   int64
}

// GetFileResult is get_file's success payload: the recovered plaintext
// and its length in bytes.
type GetFileResult struct {
	Plaintext []byte
	Size      int64
}

// FileSummary is the local, list_files view of a committed FileEnvelope.
type FileSummary struct {
	ContentKey [32]byte
	Name       string
	ByteSize   int64
	CreatedAt  time.Time
	Owner      string
	Tags       []string
	Plan       model.ShardPlan
}
