package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	defaultPoll = 500 * time.Millisecond
	maxLineSize = 1 << 20
)

// Reader reads the daemon's JSON log file, keeping only lines that pass
// Filter.
type Reader struct {
	Path   string
	Filter Filter
	// Poll is how often Follow checks for new lines.
	Poll time.Duration
}

// Last returns the final n matching lines and the end-of-file offset to
// resume from. A missing file yields no lines and offset 0.
func (r Reader) Last(n int) ([]string, int64, error) {
	if n <= 0 {
		return nil, 0, nil
	}
	ring := make([]string, 0, n)
	start := 0
	end, err := r.scan(0, func(line string) {
		if len(ring) < n {
			ring = append(ring, line)
			return
		}
		ring[start] = line
		start = (start + 1) % n
	})
	if err != nil {
		return nil, 0, err
	}
	return append(ring[start:], ring[:start]...), end, nil
}

// Since returns matching lines written after offset. When the file is
// shorter than offset it was truncated or replaced, and reading restarts
// from the beginning.
func (r Reader) Since(offset int64) ([]string, int64, error) {
	var lines []string
	end, err := r.scan(offset, func(line string) { lines = append(lines, line) })
	return lines, end, err
}

// Follow polls for new matching lines after offset and hands each non-empty
// batch to emit until ctx is cancelled.
func (r Reader) Follow(ctx context.Context, offset int64, emit func([]string)) error {
	poll := r.Poll
	if poll <= 0 {
		poll = defaultPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		lines, next, err := r.Since(offset)
		if err != nil {
			return err
		}
		offset = next
		if len(lines) > 0 {
			emit(lines)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// scan feeds every matching complete line from offset to visit and returns
// the offset just past the last complete line. A trailing partial line is
// left for the next read.
func (r Reader) scan(offset int64, visit func(string)) (int64, error) {
	file, err := os.Open(r.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return offset, fmt.Errorf("log path %q is a directory", r.Path)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReaderSize(file, 64*1024)
	pos := offset
	for {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			return pos, nil
		}
		if err != nil {
			return pos, fmt.Errorf("read log file: %w", err)
		}
		pos += int64(len(line))
		line = line[:len(line)-1]
		if len(line) > maxLineSize {
			continue
		}
		if r.Filter.Keep(line) {
			visit(line)
		}
	}
}
