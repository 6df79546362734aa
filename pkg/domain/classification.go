package domain

import (
	"fmt"
	"strings"

	dErrors "onlinemon/pkg/domain-errors"
)

// DetectorType identifies a detector in the beam line, the spectrometer, the
// gamma-ray array, or one of the bookkeeping pseudo-detectors.
// Invariant: the value must be one of the declared constants.
//
// Usage: construct via ParseDetectorType at trust boundaries (catalogue files,
// HTTP queries); direct casting bypasses validation.
type DetectorType uint8

const (
	DetectorNone DetectorType = iota
	// Beam line
	DetectorBH1
	DetectorBFT
	DetectorBC3
	DetectorBC4
	DetectorBMW
	DetectorBH2
	DetectorBACSAC
	// Spectrometer
	DetectorSDC2
	DetectorHDC
	DetectorSP0
	DetectorSDC3
	DetectorSDC4
	DetectorTOF
	DetectorTOFMT
	DetectorSFVSAC3
	DetectorLC
	// Gamma-ray array
	DetectorGe
	DetectorPWO
	// Others
	DetectorTriggerFlag
	DetectorCorrelation
	DetectorMisc
	DetectorHODO

	detectorTypeCount
)

var detectorNames = [detectorTypeCount]string{
	"None",
	"BH1", "BFT", "BC3", "BC4", "BMW", "BH2", "BAC_SAC",
	"SDC2", "HDC", "SP0", "SDC3", "SDC4", "TOF", "TOFMT", "SFV_SAC3", "LC",
	"Ge", "PWO",
	"TriggerFlag", "Correlation", "Misc", "HODO",
}

// SubDetectorType identifies a layer or section inside a detector.
// SubDetectorNone is the default for detectors without sub-structure.
type SubDetectorType uint8

const (
	SubDetectorNone SubDetectorType = iota
	// SP0 layers
	SubDetectorSP0L1
	SubDetectorSP0L2
	SubDetectorSP0L3
	SubDetectorSP0L4
	SubDetectorSP0L5
	SubDetectorSP0L6
	SubDetectorSP0L7
	SubDetectorSP0L8
	// PWO sections
	SubDetectorPWOB
	SubDetectorPWOE
	SubDetectorPWOC
	SubDetectorPWOL

	subDetectorTypeCount
)

var subDetectorNames = [subDetectorTypeCount]string{
	"None",
	"SP0_L1", "SP0_L2", "SP0_L3", "SP0_L4", "SP0_L5", "SP0_L6", "SP0_L7", "SP0_L8",
	"PWO_B", "PWO_E", "PWO_C", "PWO_L",
}

// DataKind identifies what a histogram accumulates.
type DataKind uint8

const (
	KindNone DataKind = iota
	KindADC
	KindTDC
	KindHitPat
	KindPlot2D
	KindMulti
	// Ge readout extensions
	KindCRM
	KindTFA
	KindPUR
	KindRST
	// Derived views
	KindADCwTDC
	KindHitPat2D

	dataKindCount
)

var dataKindNames = [dataKindCount]string{
	"None",
	"ADC", "TDC", "HitPat", "2DPlot", "Multi",
	"CRM", "TFA", "PUR", "RST",
	"ADCwTDC", "HitPat2D",
}

func (d DetectorType) String() string {
	if !d.IsValid() {
		return fmt.Sprintf("DetectorType(%d)", uint8(d))
	}
	return detectorNames[d]
}

// IsValid checks if the detector type is one of the declared constants.
func (d DetectorType) IsValid() bool {
	return d < detectorTypeCount
}

func (s SubDetectorType) String() string {
	if !s.IsValid() {
		return fmt.Sprintf("SubDetectorType(%d)", uint8(s))
	}
	return subDetectorNames[s]
}

// IsValid checks if the sub-detector type is one of the declared constants.
func (s SubDetectorType) IsValid() bool {
	return s < subDetectorTypeCount
}

func (k DataKind) String() string {
	if !k.IsValid() {
		return fmt.Sprintf("DataKind(%d)", uint8(k))
	}
	return dataKindNames[k]
}

// IsValid checks if the data kind is one of the declared constants.
func (k DataKind) IsValid() bool {
	return k < dataKindCount
}

// Is2D reports whether histograms of this kind have two axes.
func (k DataKind) Is2D() bool {
	return k == KindPlot2D || k == KindHitPat2D
}

// ParseDetectorType constructs a DetectorType from its display name.
// Matching is case-insensitive; "BACSAC" and "BAC_SAC" are equivalent.
//
// Errors: returns CodeInvalidInput when the value is empty or unknown.
func ParseDetectorType(s string) (DetectorType, error) {
	i, err := parseEnum(s, detectorNames[:], "detector type")
	return DetectorType(i), err
}

// ParseSubDetectorType constructs a SubDetectorType from its display name.
// An empty string parses as SubDetectorNone.
func ParseSubDetectorType(s string) (SubDetectorType, error) {
	if strings.TrimSpace(s) == "" {
		return SubDetectorNone, nil
	}
	i, err := parseEnum(s, subDetectorNames[:], "sub-detector type")
	return SubDetectorType(i), err
}

// ParseDataKind constructs a DataKind from its display name.
func ParseDataKind(s string) (DataKind, error) {
	i, err := parseEnum(s, dataKindNames[:], "data kind")
	return DataKind(i), err
}

func parseEnum(s string, names []string, what string) (int, error) {
	key := normalizeEnum(s)
	if key == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be empty")
	}
	for i, name := range names {
		if normalizeEnum(name) == key {
			return i, nil
		}
	}
	return 0, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown %s %q", what, s))
}

func normalizeEnum(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
}

// MarshalText encodes the detector type by display name.
func (d DetectorType) MarshalText() ([]byte, error) {
	if !d.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, d.String()+" is not a detector type")
	}
	return []byte(d.String()), nil
}

// UnmarshalText decodes a display name via ParseDetectorType.
func (d *DetectorType) UnmarshalText(b []byte) error {
	v, err := ParseDetectorType(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// MarshalText encodes the sub-detector type by display name.
func (s SubDetectorType) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, s.String()+" is not a sub-detector type")
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a display name via ParseSubDetectorType.
func (s *SubDetectorType) UnmarshalText(b []byte) error {
	v, err := ParseSubDetectorType(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// MarshalText encodes the data kind by display name.
func (k DataKind) MarshalText() ([]byte, error) {
	if !k.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, k.String()+" is not a data kind")
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a display name via ParseDataKind.
func (k *DataKind) UnmarshalText(b []byte) error {
	v, err := ParseDataKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}
