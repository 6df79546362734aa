package domain

import (
	"fmt"

	"onlinemon/pkg/platform/sentinel"
)

// Digit-band factors of the unique ID. Each field owns a disjoint decimal
// range: detector above 10^7, sub-detector in [10^5, 10^7), data kind in
// [10^3, 10^5), channel below 10^3.
const (
	FactorDetector    = 10_000_000
	FactorSubDetector = 100_000
	FactorKind        = 1_000

	// MaxChannel is the largest channel that fits the channel band.
	MaxChannel = FactorKind - 1
	// DefaultChannel is the channel used when a kind has a single histogram.
	DefaultChannel = 1

	maxKindBand        = FactorSubDetector/FactorKind - 1
	maxSubDetectorBand = FactorDetector/FactorSubDetector - 1
)

// UniqueID is the flat encoding of a Classification. It is a pure function
// of the classification and therefore stable across process runs.
type UniqueID int64

// SequentialID is the dense, creation-order index of a registered histogram.
type SequentialID int

// Classification identifies the role of one histogram.
type Classification struct {
	Detector    DetectorType
	SubDetector SubDetectorType
	Kind        DataKind
	Channel     int
}

// NewClassification builds a classification with the default sub-detector
// and channel.
func NewClassification(det DetectorType, kind DataKind) Classification {
	return Classification{Detector: det, SubDetector: SubDetectorNone, Kind: kind, Channel: DefaultChannel}
}

// WithChannel returns a copy of c addressing channel ch.
func (c Classification) WithChannel(ch int) Classification {
	c.Channel = ch
	return c
}

// WithSubDetector returns a copy of c addressing sub-detector s.
func (c Classification) WithSubDetector(s SubDetectorType) Classification {
	c.SubDetector = s
	return c
}

func (c Classification) String() string {
	return fmt.Sprintf("%s/%s/%s/%d", c.Detector, c.SubDetector, c.Kind, c.Channel)
}

// Validate checks every field against its digit band.
//
// Errors: wraps sentinel.ErrEncodingOverflow naming the offending field.
func (c Classification) Validate() error {
	switch {
	case !c.Detector.IsValid():
		return fmt.Errorf("detector %d: %w", uint8(c.Detector), sentinel.ErrEncodingOverflow)
	case !c.SubDetector.IsValid() || int(c.SubDetector) > maxSubDetectorBand:
		return fmt.Errorf("sub-detector %d: %w", uint8(c.SubDetector), sentinel.ErrEncodingOverflow)
	case !c.Kind.IsValid() || int(c.Kind) > maxKindBand:
		return fmt.Errorf("data kind %d: %w", uint8(c.Kind), sentinel.ErrEncodingOverflow)
	case c.Channel < 0 || c.Channel > MaxChannel:
		return fmt.Errorf("channel %d outside [0, %d]: %w", c.Channel, MaxChannel, sentinel.ErrEncodingOverflow)
	}
	return nil
}

// Encode maps a classification to its unique ID.
//
// Errors: wraps sentinel.ErrEncodingOverflow when any field leaves its band;
// no partial value is returned in that case.
func Encode(c Classification) (UniqueID, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	u := int64(c.Detector)*FactorDetector +
		int64(c.SubDetector)*FactorSubDetector +
		int64(c.Kind)*FactorKind +
		int64(c.Channel)
	return UniqueID(u), nil
}

// MustEncode is Encode for static tables. It panics on overflow.
func MustEncode(c Classification) UniqueID {
	u, err := Encode(c)
	if err != nil {
		panic(err)
	}
	return u
}

// Decode splits a unique ID back into its classification.
//
// Errors: wraps sentinel.ErrEncodingOverflow when u is negative or a decoded
// field is not a declared enum value.
func Decode(u UniqueID) (Classification, error) {
	if u < 0 {
		return Classification{}, fmt.Errorf("unique id %d: %w", u, sentinel.ErrEncodingOverflow)
	}
	v := int64(u)
	c := Classification{
		Detector:    DetectorType(v / FactorDetector),
		SubDetector: SubDetectorType(v % FactorDetector / FactorSubDetector),
		Kind:        DataKind(v % FactorSubDetector / FactorKind),
		Channel:     int(v % FactorKind),
	}
	if v/FactorDetector >= int64(detectorTypeCount) {
		return Classification{}, fmt.Errorf("unique id %d: detector out of range: %w", u, sentinel.ErrEncodingOverflow)
	}
	if err := c.Validate(); err != nil {
		return Classification{}, fmt.Errorf("unique id %d: %w", u, err)
	}
	return c, nil
}

// Classification returns the decoded classification of u.
func (u UniqueID) Classification() (Classification, error) {
	return Decode(u)
}

// Offset returns the sequential ID n positions after s. Blocks are contiguous,
// so base.Offset(channel-1) addresses a channel without a map lookup.
func (s SequentialID) Offset(n int) SequentialID {
	return s + SequentialID(n)
}
