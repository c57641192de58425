package inspect

import (
	"context"
	"os"
	"time"

	"sluice/internal/chunk"
	"sluice/internal/ledger"
)

// ChunkState classifies where a chunk currently stands.
type ChunkState string

const (
	// StateCompleted means the completion marker exists.
	StateCompleted ChunkState = "completed"
	// StateActive means no marker, but the chunk log was written recently.
	StateActive ChunkState = "active"
	// StateDone means every id is accounted for but no marker was written;
	// usually a run that was interrupted between the last id and the marker.
	StateDone ChunkState = "done"
	// StateWaiting means the chunk has not produced a log yet.
	StateWaiting ChunkState = "waiting"
	// StateStalled means there is a log but no recent activity and ids
	// remain.
	StateStalled ChunkState = "stalled"
)

// ChunkStatus is one row of the status report.
type ChunkStatus struct {
	Chunk     string
	Total     int
	Recorded  int
	Completed int
	State     ChunkState
	LogTime   time.Time
}

// Progress is the completed fraction in percent.
func (s ChunkStatus) Progress() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Completed) / float64(s.Total) * 100
}

// Report aggregates chunk statuses with overall totals and, when enough has
// happened to measure throughput, a remaining-time estimate.
type Report struct {
	Chunks         []ChunkStatus
	TotalVideos    int
	TotalRecorded  int
	TotalCompleted int
	Remaining      time.Duration
	EstimateValid  bool
}

// BuildReport surveys every chunk against the ledger. activeWindow bounds
// how stale a chunk log may be while the chunk still counts as active.
func BuildReport(ctx context.Context, repo ledger.Repository, chunksDir string, activeWindow time.Duration, now time.Time) (*Report, error) {
	paths, err := chunk.Discover(chunksDir)
	if err != nil {
		return nil, err
	}
	rows, err := repo.Read(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]ledger.Row, len(rows))
	for _, row := range rows {
		byID[row.VideoID] = row
	}

	report := &Report{}
	var earliestLog time.Time
	for _, path := range paths {
		status, err := surveyChunk(path, byID, activeWindow, now)
		if err != nil {
			return nil, err
		}
		report.Chunks = append(report.Chunks, status)
		report.TotalVideos += status.Total
		report.TotalRecorded += status.Recorded
		report.TotalCompleted += status.Completed
		if !status.LogTime.IsZero() && (earliestLog.IsZero() || status.LogTime.Before(earliestLog)) {
			earliestLog = status.LogTime
		}
	}

	// Throughput since the first chunk log appeared gives a rough remaining
	// estimate. Useless before anything has completed.
	remaining := report.TotalVideos - report.TotalCompleted
	if remaining > 0 && report.TotalCompleted > 0 && !earliestLog.IsZero() && now.After(earliestLog) {
		elapsed := now.Sub(earliestLog)
		perItem := elapsed / time.Duration(report.TotalCompleted)
		report.Remaining = perItem * time.Duration(remaining)
		report.EstimateValid = true
	}
	return report, nil
}

func surveyChunk(path string, byID map[string]ledger.Row, activeWindow time.Duration, now time.Time) (ChunkStatus, error) {
	ids, err := chunk.ReadIDs(path)
	if err != nil {
		return ChunkStatus{}, err
	}
	status := ChunkStatus{Chunk: chunk.Name(path), Total: len(ids)}
	for _, id := range ids {
		row, ok := byID[id]
		if !ok {
			continue
		}
		status.Recorded++
		if row.Complete() {
			status.Completed++
		}
	}

	if info, err := os.Stat(chunk.LogPath(path)); err == nil {
		status.LogTime = info.ModTime()
	}

	marker, err := chunk.ReadMarker(path)
	if err != nil {
		return ChunkStatus{}, err
	}
	switch {
	case marker != nil:
		status.State = StateCompleted
	case !status.LogTime.IsZero() && now.Sub(status.LogTime) <= activeWindow:
		status.State = StateActive
	case status.Total > 0 && status.Recorded == status.Total:
		status.State = StateDone
	case status.LogTime.IsZero():
		status.State = StateWaiting
	default:
		status.State = StateStalled
	}
	return status, nil
}
