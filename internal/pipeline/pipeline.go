package pipeline

import (
	"context"
	"fmt"

	"sluice/internal/ledger"
)

// Processor performs the full per-video pipeline: fetch audio, transcribe,
// translate, upload captions, deliver. It returns the stage flags that were
// reached; on failure the returned flags still record every stage that
// succeeded so the ledger can capture partial progress.
type Processor interface {
	Process(ctx context.Context, videoID string) (ledger.Flags, error)
}

// ItemError wraps a per-video failure with the id it belongs to. Workers
// absorb these; only the id's ledger row is affected.
type ItemError struct {
	VideoID string
	Err     error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("video %s: %v", e.VideoID, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

func itemErr(videoID string, err error) error {
	return &ItemError{VideoID: videoID, Err: err}
}
