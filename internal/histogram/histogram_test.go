package histogram

import (
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onlinemon/pkg/platform/sentinel"
)

func TestAxis_Validate(t *testing.T) {
	tests := []struct {
		name    string
		axis    Axis
		wantErr bool
	}{
		{"valid", Axis{Bins: 10, Min: 0, Max: 10}, false},
		{"zero bins", Axis{Bins: 0, Min: 0, Max: 10}, true},
		{"negative bins", Axis{Bins: -4, Min: 0, Max: 10}, true},
		{"empty range", Axis{Bins: 10, Min: 5, Max: 5}, true},
		{"inverted range", Axis{Bins: 10, Min: 5, Max: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.axis.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, sentinel.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestH1_Fill(t *testing.T) {
	h, err := NewH1("BH1_ADC_1", "BH1 ADC 1", Axis{Bins: 4, Min: 0, Max: 4})
	require.NoError(t, err)

	h.Fill(-1)         // underflow
	h.Fill(0)          // bin 1
	h.Fill(0.999)      // bin 1
	h.Fill(3.5)        // bin 4
	h.Fill(4)          // overflow
	h.Fill(math.NaN()) // underflow

	assert.Equal(t, uint64(6), h.Entries())
	assert.Equal(t, uint64(2), h.Bin(0))
	assert.Equal(t, uint64(2), h.Bin(1))
	assert.Equal(t, uint64(0), h.Bin(2))
	assert.Equal(t, uint64(1), h.Bin(4))
	assert.Equal(t, uint64(1), h.Bin(5))
	assert.Equal(t, uint64(0), h.Bin(99))

	snap := h.Snapshot()
	assert.Equal(t, 1, snap.Dimension)
	assert.Len(t, snap.Counts, 6)
	assert.Nil(t, snap.Y)

	h.Reset()
	assert.Zero(t, h.Entries())
	assert.Equal(t, uint64(2), snap.Counts[1], "snapshot must not alias live bins")
}

func TestH1_NonFiniteKeepsSnapshotEncodable(t *testing.T) {
	h, err := NewH1("TOF_ADC_1", "", Axis{Bins: 4, Min: 0, Max: 4})
	require.NoError(t, err)

	h.Fill(1.5)
	h.Fill(math.NaN())
	h.Fill(math.Inf(1))
	h.Fill(math.Inf(-1))

	snap := h.Snapshot()
	assert.Equal(t, uint64(4), snap.Entries)
	assert.Equal(t, 1.5, snap.Sum)
	assert.Equal(t, uint64(2), snap.Counts[0])
	assert.Equal(t, uint64(1), snap.Counts[5])

	_, err = json.Marshal(snap)
	require.NoError(t, err)
}

func TestH2_FillXY(t *testing.T) {
	h, err := NewH2("HitMap", "hit map", Axis{Bins: 2, Min: 0, Max: 2}, Axis{Bins: 3, Min: 0, Max: 3})
	require.NoError(t, err)

	h.FillXY(0.5, 2.5)
	h.FillXY(0.5, 2.5)
	h.FillXY(5, -1)

	assert.Equal(t, uint64(3), h.Entries())
	assert.Equal(t, uint64(2), h.Bin(1, 3))
	assert.Equal(t, uint64(1), h.Bin(3, 0))

	snap := h.Snapshot()
	require.NotNil(t, snap.Y)
	assert.Equal(t, 3, snap.Y.Bins)
	assert.Len(t, snap.Counts, 4*5)
}

func TestConstructors_Reject(t *testing.T) {
	_, err := NewH1("", "", Axis{Bins: 1, Min: 0, Max: 1})
	require.ErrorIs(t, err, sentinel.ErrInvalidInput)

	_, err = NewH2("x", "", Axis{Bins: 1, Min: 0, Max: 1}, Axis{})
	require.ErrorIs(t, err, sentinel.ErrInvalidInput)
}

// TestH1_ConcurrentReaders exercises the single-writer, shared-reader model
// under the race detector.
func TestH1_ConcurrentReaders(t *testing.T) {
	h, err := NewH1("TOF_TDC_1", "", Axis{Bins: 100, Min: 0, Max: 100})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			h.Fill(float64(i % 100))
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				snap := h.Snapshot()
				var total uint64
				for _, c := range snap.Counts {
					total += c
				}
				if total != snap.Entries {
					t.Errorf("snapshot counts %d disagree with entries %d", total, snap.Entries)
					return
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(1000), h.Entries())
}

func TestGroup_Walk(t *testing.T) {
	a, _ := NewH1("a", "", Axis{Bins: 1, Min: 0, Max: 1})
	b, _ := NewH1("b", "", Axis{Bins: 1, Min: 0, Max: 1})
	c, _ := NewH1("c", "", Axis{Bins: 1, Min: 0, Max: 1})

	root := NewGroup("BH1")
	root.Add(a)
	adc := NewGroup("ADC")
	adc.Add(b)
	adc.Add(c)
	root.AddGroup(adc)

	assert.Equal(t, 3, root.Len())

	var visited []string
	require.NoError(t, root.Walk(func(path string, h Histogram) error {
		visited = append(visited, path+":"+h.Name())
		return nil
	}))
	assert.Equal(t, []string{"BH1:a", "BH1/ADC:b", "BH1/ADC:c"}, visited)

	stop := errors.New("stop")
	n := 0
	err := root.Walk(func(string, Histogram) error {
		n++
		return stop
	})
	require.ErrorIs(t, err, stop)
	assert.Equal(t, 1, n)
}
