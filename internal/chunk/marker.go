package chunk

import (
	"fmt"
	"os"
	"strings"
	"time"

	"sluice/internal/fileutil"
	"sluice/internal/services"
)

// Mode records how completion of a chunk was judged.
type Mode string

const (
	// ModeStrict requires every required ledger flag true for every id.
	ModeStrict Mode = "strict"
	// ModeLenient accepts any ledger row for every id, flags or not.
	ModeLenient Mode = "lenient"
)

// ParseMode validates a mode string from a CLI flag.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeStrict:
		return ModeStrict, nil
	case ModeLenient:
		return ModeLenient, nil
	default:
		return "", services.Wrap(services.ErrConfiguration, "chunk", "parse-mode", fmt.Sprintf("unknown completion mode %q (want strict or lenient)", value), nil)
	}
}

// Marker is a parsed completion marker.
type Marker struct {
	Mode        Mode
	CompletedAt time.Time
}

// WriteMarker records chunk completion, stamping the mode that judged it so
// later strict checks know whether the marker can be trusted. The write is
// atomic; a half-written marker would otherwise read as legacy strict.
func WriteMarker(chunkPath string, mode Mode) error {
	payload := fmt.Sprintf("mode=%s\ncompleted_at=%s\n", mode, time.Now().UTC().Format(time.RFC3339))
	if err := fileutil.WriteFileAtomic(MarkerPath(chunkPath), []byte(payload), 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "chunk", "mark", fmt.Sprintf("write marker for %s", Name(chunkPath)), err)
	}
	return nil
}

// ReadMarker loads the marker for a chunk. It returns (nil, nil) when no
// marker exists. Markers written by older tooling carry no payload; those
// and any unparsable payloads are treated as strict with a zero timestamp,
// matching how they were produced.
func ReadMarker(chunkPath string) (*Marker, error) {
	raw, err := os.ReadFile(MarkerPath(chunkPath))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "chunk", "mark", fmt.Sprintf("read marker for %s", Name(chunkPath)), err)
	}

	marker := &Marker{Mode: ModeStrict}
	for _, line := range strings.Split(string(raw), "\n") {
		key, value, found := strings.Cut(strings.TrimSpace(line), "=")
		if !found {
			continue
		}
		switch key {
		case "mode":
			if parsed, err := ParseMode(value); err == nil {
				marker.Mode = parsed
			}
		case "completed_at":
			if ts, err := time.Parse(time.RFC3339, value); err == nil {
				marker.CompletedAt = ts
			}
		}
	}
	return marker, nil
}

// RemoveMarker deletes a chunk's completion marker. Missing markers are not
// an error; force reruns call this unconditionally.
func RemoveMarker(chunkPath string) error {
	if err := os.Remove(MarkerPath(chunkPath)); err != nil && !os.IsNotExist(err) {
		return services.Wrap(services.ErrTransient, "chunk", "mark", fmt.Sprintf("remove marker for %s", Name(chunkPath)), err)
	}
	return nil
}
