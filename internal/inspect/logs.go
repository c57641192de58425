package inspect

import (
	"os"
	"regexp"
	"strings"
	"time"

	"sluice/internal/chunk"
)

// VideoSection groups the log entries belonging to one video's processing
// attempt.
type VideoSection struct {
	VideoID string
	Entries []chunk.Entry
	Failed  bool
	Done    bool
}

var processingLine = regexp.MustCompile(`^(?:Skipping already completed video|Processing video) \d+/\d+: (\S+)$`)

// GroupByVideo splits a chunk log into per-video sections using the worker's
// progress lines as boundaries. Entries before the first progress line
// (chunk-level preamble) are returned under an empty video id.
func GroupByVideo(entries []chunk.Entry) []VideoSection {
	var sections []VideoSection
	current := VideoSection{}
	flush := func() {
		if current.VideoID != "" || len(current.Entries) > 0 {
			sections = append(sections, current)
		}
	}
	for _, entry := range entries {
		if match := processingLine.FindStringSubmatch(entry.Message); match != nil {
			flush()
			current = VideoSection{VideoID: match[1]}
		}
		current.Entries = append(current.Entries, entry)
		switch {
		case strings.HasPrefix(entry.Message, "Failed to process "):
			current.Failed = true
		case strings.HasPrefix(entry.Message, "Successfully processed "),
			strings.HasPrefix(entry.Message, "Skipping already completed video "):
			current.Done = true
		}
	}
	flush()
	return sections
}

// FilterErrors keeps only error and warning entries.
func FilterErrors(entries []chunk.Entry) []chunk.Entry {
	var out []chunk.Entry
	for _, entry := range entries {
		if entry.IsError() {
			out = append(out, entry)
		}
	}
	return out
}

// Search keeps entries whose message contains term, case-insensitively.
func Search(entries []chunk.Entry, term string) []chunk.Entry {
	term = strings.ToLower(term)
	var out []chunk.Entry
	for _, entry := range entries {
		if strings.Contains(strings.ToLower(entry.Message), term) {
			out = append(out, entry)
		}
	}
	return out
}

// LogInfo describes one chunk's log file, present or not.
type LogInfo struct {
	Chunk   string
	Path    string
	HasLog  bool
	Size    int64
	ModTime time.Time
}

// ListLogs surveys the log files for every chunk under dir.
func ListLogs(dir string) ([]LogInfo, error) {
	paths, err := chunk.Discover(dir)
	if err != nil {
		return nil, err
	}
	infos := make([]LogInfo, 0, len(paths))
	for _, path := range paths {
		info := LogInfo{Chunk: chunk.Name(path), Path: chunk.LogPath(path)}
		if stat, err := os.Stat(info.Path); err == nil {
			info.HasLog = true
			info.Size = stat.Size()
			info.ModTime = stat.ModTime()
		}
		infos = append(infos, info)
	}
	return infos, nil
}
