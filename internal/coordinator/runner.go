package coordinator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"sluice/internal/chunk"
	"sluice/internal/services"
)

// ChunkRunner executes one chunk to completion. The production runner spawns
// a worker process; tests substitute in-process implementations.
type ChunkRunner interface {
	RunChunk(ctx context.Context, chunkPath string) error
}

// ProcessRunner dispatches chunks as independent worker processes by
// re-invoking the current executable with the work subcommand. Workers share
// nothing with the coordinator but the filesystem, so a crashed or killed
// worker can never corrupt coordinator state.
type ProcessRunner struct {
	out io.Writer
	mu  sync.Mutex
}

func NewProcessRunner(out io.Writer) *ProcessRunner {
	if out == nil {
		out = os.Stdout
	}
	return &ProcessRunner{out: out}
}

func (p *ProcessRunner) RunChunk(ctx context.Context, chunkPath string) error {
	exe, err := os.Executable()
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "coordinator", "spawn", "resolve executable", err)
	}

	cmd := exec.CommandContext(ctx, exe, "work", chunkPath)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return services.Wrap(services.ErrTransient, "coordinator", "spawn", "pipe stdout", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrTransient, "coordinator", "spawn", "start worker process", err)
	}
	p.relay(chunk.Name(chunkPath), stdout)

	if err := cmd.Wait(); err != nil {
		return services.Wrap(services.ErrItemProcessing, "coordinator", "spawn", fmt.Sprintf("worker for %s", chunk.Name(chunkPath)), err)
	}
	return nil
}

// relay copies worker output line by line, prefixed with the chunk name so
// interleaved workers stay readable.
func (p *ProcessRunner) relay(name string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		p.mu.Lock()
		fmt.Fprintf(p.out, "[%s] %s\n", name, scanner.Text())
		p.mu.Unlock()
	}
	if err := scanner.Err(); err != nil {
		p.mu.Lock()
		fmt.Fprintf(p.out, "[%s] output truncated: %v\n", name, err)
		p.mu.Unlock()
		// Keep draining so Wait is never blocked on a full pipe.
		_, _ = io.Copy(io.Discard, r)
	}
}
