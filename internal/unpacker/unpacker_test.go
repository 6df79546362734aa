package unpacker

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "onlinemon/pkg/domain-errors"
)

func TestMemoryEvent(t *testing.T) {
	ev := NewMemoryEvent(7, 42).
		Add("HODO", "adc", 3, 120).
		Add("HODO", "tdc", 3, 0, 850).
		Add("HODO", "tdc", 1, 400)

	assert.Equal(t, 7, ev.Run())
	assert.Equal(t, uint64(42), ev.Number())
	assert.Equal(t, 1, ev.Entries("HODO", "adc", 3))
	assert.Equal(t, 2, ev.Entries("HODO", "tdc", 3))
	assert.Equal(t, 850, ev.Get("HODO", "tdc", 3, 1))
	assert.Equal(t, 0, ev.Get("HODO", "tdc", 3, 9))
	assert.Equal(t, 0, ev.Entries("BH1", "adc", 0))
	assert.Equal(t, []int{1, 3}, ev.Segments("HODO", "tdc"))
}

func TestReader(t *testing.T) {
	stream := strings.Join([]string{
		`{"run":1,"event":1,"devices":{"BH1":{"adc":{"0":[100,101]}}}}`,
		``,
		`{"run":2,"event":1,"devices":{}}`,
	}, "\n")
	r := NewReader(strings.NewReader(stream))
	ctx := context.Background()

	ev, err := r.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ev.Run())
	assert.Equal(t, 2, ev.Entries("BH1", "adc", 0))
	assert.Equal(t, 101, ev.Get("BH1", "adc", 0, 1))

	ev, err = r.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, ev.Run())

	_, err = r.Next(ctx)
	require.ErrorIs(t, err, io.EOF)
	require.NoError(t, r.Close())
}

func TestReader_Malformed(t *testing.T) {
	r := NewReader(strings.NewReader("{not json}\n"))
	_, err := r.Next(context.Background())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func TestReader_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewReader(strings.NewReader(`{"run":1}`)).Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestReader_QuietStreamHonoursContext(t *testing.T) {
	pr, pw := io.Pipe()
	r := NewReader(pr)
	t.Cleanup(func() { _ = r.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := r.Next(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after its context expired")
	}

	// A line that arrives later is still delivered to the next call.
	go func() {
		_, _ = io.WriteString(pw, `{"run":4,"event":9,"devices":{}}`+"\n")
	}()
	ev, err := r.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, ev.Run())
	assert.Equal(t, uint64(9), ev.Number())
}

func TestReader_CloseStopsScanning(t *testing.T) {
	pr, pw := io.Pipe()
	r := NewReader(pr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.NoError(t, r.Close())
	_, err = io.WriteString(pw, "{}\n")
	require.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestSliceSource(t *testing.T) {
	src := NewSliceSource(NewMemoryEvent(1, 1), NewMemoryEvent(1, 2))
	ctx := context.Background()
	for want := uint64(1); want <= 2; want++ {
		ev, err := src.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, ev.Number())
	}
	_, err := src.Next(ctx)
	require.ErrorIs(t, err, io.EOF)
}
