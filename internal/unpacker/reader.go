package unpacker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	dErrors "onlinemon/pkg/domain-errors"
)

// maxLine bounds one encoded event.
const maxLine = 16 << 20

// Reader decodes one MemoryEvent per line of a JSON-lines stream.
//
// Lines are scanned by a background goroutine so Next can return as soon as
// its context is done, even while the stream is quiet. A line read after
// Next gave up is kept for the following call.
type Reader struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int

	start sync.Once
	lines chan scanned
	done  chan struct{}
	stop  sync.Once
}

type scanned struct {
	raw []byte
	err error
}

// NewReader reads events from r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	rd := &Reader{
		scanner: sc,
		lines:   make(chan scanned),
		done:    make(chan struct{}),
	}
	if c, ok := r.(io.Closer); ok {
		rd.closer = c
	}
	return rd
}

// Open reads events from the file at path; "-" reads standard input.
func Open(path string) (*Reader, error) {
	if path == "-" {
		return NewReader(io.NopCloser(os.Stdin)), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event stream %s: %w", path, err)
	}
	return NewReader(f), nil
}

// scan feeds lines until the stream ends or the reader is closed. The
// channel is closed after the last line; a read error is sent first.
func (r *Reader) scan() {
	defer close(r.lines)
	for r.scanner.Scan() {
		raw := append([]byte(nil), r.scanner.Bytes()...)
		select {
		case r.lines <- scanned{raw: raw}:
		case <-r.done:
			return
		}
	}
	if err := r.scanner.Err(); err != nil {
		select {
		case r.lines <- scanned{err: err}:
		case <-r.done:
		}
	}
}

// Next returns the next event, skipping blank lines. It returns io.EOF at the
// end of the stream and ctx.Err() once ctx is done.
func (r *Reader) Next(ctx context.Context) (Event, error) {
	r.start.Do(func() { go r.scan() })
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var l scanned
		var ok bool
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case l, ok = <-r.lines:
		}
		if !ok {
			return nil, io.EOF
		}
		if l.err != nil {
			return nil, fmt.Errorf("read event stream: %w", l.err)
		}
		r.line++
		if len(l.raw) == 0 {
			continue
		}
		ev := NewMemoryEvent(0, 0)
		if err := json.Unmarshal(l.raw, ev); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, fmt.Sprintf("decode event on line %d", r.line))
		}
		return ev, nil
	}
}

// Close stops the scanning goroutine and releases the underlying stream. A
// scan blocked on a stream that cannot be closed, such as standard input,
// ends when the process does.
func (r *Reader) Close() error {
	r.stop.Do(func() { close(r.done) })
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// SliceSource replays a fixed list of events.
type SliceSource struct {
	events []Event
	next   int
}

// NewSliceSource returns a Source over events.
func NewSliceSource(events ...Event) *SliceSource {
	return &SliceSource{events: events}
}

func (s *SliceSource) Next(ctx context.Context) (Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.events) {
		return nil, io.EOF
	}
	ev := s.events[s.next]
	s.next++
	return ev, nil
}
