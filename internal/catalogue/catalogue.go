// Package catalogue describes which histograms each detector block owns.
//
// A catalogue is static input: the factory walks it in document order to
// create and register histograms, and the analyzer walks it again to route
// decoded event data into them.
package catalogue

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"sigs.k8s.io/yaml"

	"onlinemon/internal/histogram"
	"onlinemon/pkg/domain"
	dErrors "onlinemon/pkg/domain-errors"
)

// DefaultNameTemplate renders names such as "BH1_ADC_3".
const DefaultNameTemplate = "{detector}_{kind}_{channel}"

// SubDetectorNameTemplate is used when a block has a sub-detector and no
// explicit template.
const SubDetectorNameTemplate = "{detector}_{sub}_{kind}_{channel}"

//go:embed default.yaml
var defaultDocument []byte

// Catalogue is the ordered list of detector blocks.
type Catalogue struct {
	Detectors []Detector `json:"detectors"`
	// Scaler enables spill-by-spill counter monitoring when set.
	Scaler *ScalerSpec `json:"scaler,omitempty"`
}

// Detector is one creation block: every histogram of one
// (detector, sub-detector) pair.
type Detector struct {
	// Name is the display group name; defaults to the detector name.
	Name        string                 `json:"name,omitempty"`
	Detector    domain.DetectorType    `json:"detector"`
	SubDetector domain.SubDetectorType `json:"subdetector,omitempty"`
	// Device is the unpacker device the analyzer reads for this block.
	Device string     `json:"device,omitempty"`
	Kinds  []KindSpec `json:"kinds"`
}

// KindSpec declares the histograms of one data kind inside a block.
//
// Per-channel kinds (ADC, TDC, the Ge extensions, ADCwTDC) get one histogram
// per channel and channel c reads segment c-1. Aggregate kinds (HitPat,
// Multi, 2DPlot, HitPat2D) summarise Segments segments into each histogram.
// A kind without Data is created and registered but not filled by the
// analyzer.
type KindSpec struct {
	Kind     domain.DataKind `json:"kind"`
	Channels int             `json:"channels"`
	Segments int             `json:"segments,omitempty"`
	Data     string          `json:"data,omitempty"`
	// Gate names the data a sample must coincide with (ADCwTDC only).
	Gate  string          `json:"gate,omitempty"`
	Name  string          `json:"name,omitempty"`
	Title string          `json:"title,omitempty"`
	X     histogram.Axis  `json:"x"`
	Y     *histogram.Axis `json:"y,omitempty"`
}

// Parse decodes and validates a YAML (or JSON) catalogue.
func Parse(doc []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(doc, &c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "decode catalogue")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads and parses the catalogue at path.
func Load(path string) (*Catalogue, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalogue %s: %w", path, err)
	}
	return Parse(doc)
}

// Default returns the built-in catalogue.
func Default() *Catalogue {
	c, err := Parse(defaultDocument)
	if err != nil {
		panic(fmt.Sprintf("embedded catalogue is invalid: %v", err))
	}
	return c
}

// Validate checks every block and reports all problems at once.
//
// Errors: dErrors.CodeValidation wrapping the combined list.
func (c *Catalogue) Validate() error {
	var errs error
	if len(c.Detectors) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("no detector blocks"))
	}

	type blockKey struct {
		det domain.DetectorType
		sub domain.SubDetectorType
	}
	blocks := make(map[blockKey]int, len(c.Detectors))
	names := make(map[string]string)

	for i, d := range c.Detectors {
		where := fmt.Sprintf("detectors[%d] (%s)", i, d.DisplayName())
		if d.Detector == domain.DetectorNone || !d.Detector.IsValid() {
			errs = multierr.Append(errs, fmt.Errorf("%s: detector is required", where))
		}
		if !d.SubDetector.IsValid() {
			errs = multierr.Append(errs, fmt.Errorf("%s: unknown sub-detector", where))
		}
		key := blockKey{d.Detector, d.SubDetector}
		if prev, ok := blocks[key]; ok {
			errs = multierr.Append(errs, fmt.Errorf("%s: duplicates block detectors[%d]", where, prev))
		}
		blocks[key] = i
		if len(d.Kinds) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("%s: no kinds", where))
		}

		seen := make(map[domain.DataKind]bool, len(d.Kinds))
		for j, k := range d.Kinds {
			kwhere := fmt.Sprintf("%s kinds[%d] (%s)", where, j, k.Kind)
			if seen[k.Kind] {
				errs = multierr.Append(errs, fmt.Errorf("%s: kind declared twice", kwhere))
			}
			seen[k.Kind] = true
			errs = multierr.Append(errs, d.validateKind(kwhere, k))

			for ch := 1; ch <= k.Channels && ch <= domain.MaxChannel; ch++ {
				name := k.HistogramName(d, ch)
				if prev, ok := names[name]; ok {
					errs = multierr.Append(errs, fmt.Errorf("%s: name %q already used by %s", kwhere, name, prev))
					break
				}
				names[name] = kwhere
			}
		}
	}

	if c.Scaler != nil {
		errs = multierr.Append(errs, c.Scaler.validate())
	}

	if errs != nil {
		return dErrors.Wrap(errs, dErrors.CodeValidation, "invalid catalogue")
	}
	return nil
}

func (d Detector) validateKind(where string, k KindSpec) error {
	var errs error
	if k.Kind == domain.KindNone || !k.Kind.IsValid() {
		errs = multierr.Append(errs, fmt.Errorf("%s: kind is required", where))
	}
	if k.Channels < 1 {
		errs = multierr.Append(errs, fmt.Errorf("%s: channels must be at least 1", where))
	}
	if k.Channels > domain.MaxChannel {
		errs = multierr.Append(errs, fmt.Errorf("%s: %d channels exceed the channel band (max %d)", where, k.Channels, domain.MaxChannel))
	}
	if err := k.X.Validate(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("%s: x: %w", where, err))
	}
	switch {
	case k.Kind.Is2D() && k.Y == nil:
		errs = multierr.Append(errs, fmt.Errorf("%s: 2-D kind needs a y axis", where))
	case k.Kind.Is2D():
		if err := k.Y.Validate(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: y: %w", where, err))
		}
	case k.Y != nil:
		errs = multierr.Append(errs, fmt.Errorf("%s: 1-D kind has a y axis", where))
	}
	if k.Data != "" {
		if d.Device == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s: data %q set but block has no device", where, k.Data))
		}
		if k.Aggregate() {
			if k.Segments < 1 {
				errs = multierr.Append(errs, fmt.Errorf("%s: aggregate kind needs segments", where))
			}
			if k.Channels != 1 {
				errs = multierr.Append(errs, fmt.Errorf("%s: routed aggregate kind must have one channel", where))
			}
		}
		if k.Kind == domain.KindADCwTDC && k.Gate == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s: ADCwTDC needs a gate", where))
		}
	}
	return errs
}

// DisplayName returns Name, falling back to the detector name.
func (d Detector) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Detector.String()
}

// Classification returns the classification of channel ch of kind k in d.
func (d Detector) Classification(k domain.DataKind, ch int) domain.Classification {
	return domain.NewClassification(d.Detector, k).WithSubDetector(d.SubDetector).WithChannel(ch)
}

// Count returns how many histograms the block creates.
func (d Detector) Count() int {
	n := 0
	for _, k := range d.Kinds {
		n += k.Channels
	}
	return n
}

// Count returns how many histograms the whole catalogue creates.
func (c *Catalogue) Count() int {
	n := 0
	for _, d := range c.Detectors {
		n += d.Count()
	}
	return n
}

// Aggregate reports whether one histogram summarises many segments.
func (k KindSpec) Aggregate() bool {
	switch k.Kind {
	case domain.KindHitPat, domain.KindMulti, domain.KindPlot2D, domain.KindHitPat2D:
		return true
	default:
		return false
	}
}

// HistogramName renders the naming template for channel ch of d.
func (k KindSpec) HistogramName(d Detector, ch int) string {
	tmpl := k.Name
	if tmpl == "" {
		tmpl = DefaultNameTemplate
		if d.SubDetector != domain.SubDetectorNone {
			tmpl = SubDetectorNameTemplate
		}
	}
	return strings.NewReplacer(
		"{detector}", d.Detector.String(),
		"{sub}", d.SubDetector.String(),
		"{kind}", k.Kind.String(),
		"{channel}", strconv.Itoa(ch),
	).Replace(tmpl)
}

// HistogramTitle returns the title for channel ch, defaulting to the name.
func (k KindSpec) HistogramTitle(d Detector, ch int) string {
	if k.Title == "" {
		return k.HistogramName(d, ch)
	}
	return strings.NewReplacer("{channel}", strconv.Itoa(ch)).Replace(k.Title)
}
