package chunk

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"sluice/internal/services"
)

const logTimeLayout = "2006-01-02 15:04:05"

// Log appends timestamped entries to a chunk's log file. Each worker owns
// its chunk log exclusively, so the mutex only guards goroutines within one
// worker.
type Log struct {
	mu   sync.Mutex
	file *os.File
	now  func() time.Time
}

// OpenLog opens (appending) the log file for a chunk.
func OpenLog(chunkPath string) (*Log, error) {
	file, err := os.OpenFile(LogPath(chunkPath), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "chunk", "log", fmt.Sprintf("open log for %s", Name(chunkPath)), err)
	}
	return &Log{file: file, now: time.Now}, nil
}

func (l *Log) Infof(format string, args ...any) error {
	return l.write("INFO", format, args...)
}

func (l *Log) Warnf(format string, args ...any) error {
	return l.write("WARNING", format, args...)
}

func (l *Log) Errorf(format string, args ...any) error {
	return l.write("ERROR", format, args...)
}

func (l *Log) write(level, format string, args ...any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	line := fmt.Sprintf("%s [%s] %s\n", l.now().Format(logTimeLayout), level, fmt.Sprintf(format, args...))
	if _, err := l.file.WriteString(line); err != nil {
		return services.Wrap(services.ErrTransient, "chunk", "log", "append log line", err)
	}
	return nil
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Entry is one parsed chunk log line.
type Entry struct {
	Time    time.Time
	Level   string
	Message string
}

// IsError reports whether the entry is an error or warning line.
func (e Entry) IsError() bool {
	return e.Level == "ERROR" || e.Level == "WARNING"
}

// ParseLog reads chunk log entries from r. Lines that don't match the log
// format (stack traces, library output) are folded into the preceding
// entry's message so an error keeps its detail.
func ParseLog(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if entry, ok := parseLogLine(line); ok {
			entries = append(entries, entry)
			continue
		}
		if len(entries) > 0 {
			entries[len(entries)-1].Message += "\n" + line
		} else if strings.TrimSpace(line) != "" {
			entries = append(entries, Entry{Level: "INFO", Message: line})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, services.Wrap(services.ErrTransient, "chunk", "log", "scan log", err)
	}
	return entries, nil
}

func parseLogLine(line string) (Entry, bool) {
	if len(line) < len(logTimeLayout)+4 {
		return Entry{}, false
	}
	ts, err := time.Parse(logTimeLayout, line[:len(logTimeLayout)])
	if err != nil {
		return Entry{}, false
	}
	rest := strings.TrimSpace(line[len(logTimeLayout):])
	if !strings.HasPrefix(rest, "[") {
		return Entry{}, false
	}
	levelEnd := strings.Index(rest, "]")
	if levelEnd < 0 {
		return Entry{}, false
	}
	return Entry{
		Time:    ts,
		Level:   rest[1:levelEnd],
		Message: strings.TrimSpace(rest[levelEnd+1:]),
	}, true
}
