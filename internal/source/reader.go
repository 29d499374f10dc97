package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// maxLineBytes bounds a single log line; anything longer is a pathological
// input that is discarded and counted, never failing the run.
const maxLineBytes = 1024 * 1024

// lineResult carries one read outcome from the reader goroutine.
type lineResult struct {
	line string
	err  error
}

// ReaderSource yields newline-delimited lines from a file or stream. Reads
// happen on a dedicated goroutine feeding a channel, so Next can observe
// context cancellation even while the underlying stream (an idle stdin,
// say) blocks in a read.
type ReaderSource struct {
	reader *bufio.Reader
	lines  chan lineResult
	done   chan struct{}
	stop   sync.Once
	closer io.Closer
}

// NewReaderSource wraps an arbitrary stream, typically stdin.
func NewReaderSource(r io.Reader) *ReaderSource {
	s := &ReaderSource{
		reader: bufio.NewReaderSize(r, 64*1024),
		lines:  make(chan lineResult),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s
}

// NewStdinSource reads lines from standard input.
func NewStdinSource() *ReaderSource {
	return NewReaderSource(os.Stdin)
}

// NewFileSource opens the given log file. A missing file is a startup
// failure, reported before any line is processed.
func NewFileSource(path string) (*ReaderSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	src := NewReaderSource(f)
	src.closer = f
	return src, nil
}

// Next returns the next line, io.EOF when the input is exhausted, or
// ctx.Err() when cancelled while waiting for one.
func (s *ReaderSource) Next(ctx context.Context) (string, error) {
	select {
	case res, ok := <-s.lines:
		if !ok {
			return "", io.EOF
		}
		return res.line, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *ReaderSource) Close() error {
	// Unblocks the reader goroutine if nobody is consuming anymore. A
	// goroutine parked in an uncancellable stdin read stays parked until
	// process exit; Next has already returned by then.
	s.stop.Do(func() { close(s.done) })
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// readLoop pumps lines into the channel until EOF or a terminal read error.
// An overlong line is reported as ErrLineTooLong and the loop continues with
// the next line.
func (s *ReaderSource) readLoop() {
	defer close(s.lines)
	for {
		line, err := s.readLine()
		if errors.Is(err, io.EOF) {
			return
		}
		select {
		case s.lines <- lineResult{line: line, err: err}:
		case <-s.done:
			return
		}
		if err != nil && !errors.Is(err, ErrLineTooLong) {
			return
		}
	}
}

// readLine accumulates one line up to maxLineBytes. Beyond the bound the
// remainder of the line is drained and discarded so the source can resume
// at the next line.
func (s *ReaderSource) readLine() (string, error) {
	var buf []byte
	overlong := false
	for {
		chunk, isPrefix, err := s.reader.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) && overlong {
				return "", ErrLineTooLong
			}
			if errors.Is(err, io.EOF) && len(buf) > 0 {
				// Final line without a trailing newline.
				return string(buf), nil
			}
			return "", err
		}

		if !overlong {
			if len(buf)+len(chunk) > maxLineBytes {
				overlong = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}

		if !isPrefix {
			if overlong {
				return "", ErrLineTooLong
			}
			return string(buf), nil
		}
	}
}
