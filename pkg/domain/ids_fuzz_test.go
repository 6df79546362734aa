//go:build go1.18

package domain

import (
	"errors"
	"testing"

	"onlinemon/pkg/platform/sentinel"
)

// FuzzEncode checks that encoding never panics, either succeeds or reports
// an overflow, and that every accepted classification decodes to itself.
func FuzzEncode(f *testing.F) {
	f.Add(uint8(5), uint8(0), uint8(1), 1)
	f.Add(uint8(22), uint8(12), uint8(11), 999)
	f.Add(uint8(0), uint8(0), uint8(0), 0)
	f.Add(uint8(255), uint8(255), uint8(255), 1000)
	f.Add(uint8(1), uint8(1), uint8(1), -7)

	f.Fuzz(func(t *testing.T, det, sub, kind uint8, ch int) {
		c := Classification{
			Detector:    DetectorType(det),
			SubDetector: SubDetectorType(sub),
			Kind:        DataKind(kind),
			Channel:     ch,
		}
		u, err := Encode(c)
		if err != nil {
			if !errors.Is(err, sentinel.ErrEncodingOverflow) {
				t.Fatalf("unexpected error kind: %v", err)
			}
			return
		}
		back, err := Decode(u)
		if err != nil {
			t.Fatalf("accepted %v but failed to decode %d: %v", c, u, err)
		}
		if back != c {
			t.Fatalf("round trip changed %v into %v", c, back)
		}
	})
}

// FuzzDecode checks that arbitrary integers never decode to a classification
// that encodes to a different value.
func FuzzDecode(f *testing.F) {
	f.Add(int64(50_001_001))
	f.Add(int64(-1))
	f.Add(int64(1 << 40))

	f.Fuzz(func(t *testing.T, v int64) {
		c, err := Decode(UniqueID(v))
		if err != nil {
			return
		}
		u, err := Encode(c)
		if err != nil {
			t.Fatalf("decoded %v from %d but it does not encode: %v", c, v, err)
		}
		if int64(u) != v {
			t.Fatalf("decode/encode mismatch: %d -> %v -> %d", v, c, u)
		}
	})
}
