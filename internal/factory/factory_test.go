package factory

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"onlinemon/internal/catalogue"
	"onlinemon/internal/histogram"
	"onlinemon/internal/registry"
	"onlinemon/pkg/domain"
	"onlinemon/pkg/platform/sentinel"
)

var unitAxis = histogram.Axis{Bins: 16, Min: 0, Max: 16}

func bmwBlock() catalogue.Detector {
	return catalogue.Detector{
		Detector: domain.DetectorBMW,
		Device:   "BMW",
		Kinds: []catalogue.KindSpec{
			{Kind: domain.KindADC, Channels: 8, Data: "adc", X: unitAxis},
			{Kind: domain.KindTDC, Channels: 8, Data: "tdc", X: unitAxis},
		},
	}
}

type MakerSuite struct {
	suite.Suite
	ctx   context.Context
	reg   *registry.Registry
	maker *Maker
}

func (s *MakerSuite) SetupTest() {
	s.ctx = context.Background()
	s.reg = registry.New()
	s.maker = New(s.reg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestMakerSuite(t *testing.T) {
	suite.Run(t, new(MakerSuite))
}

// TestBuildBlock_ContiguousKinds covers a block of ADC x8 followed by TDC x8.
func (s *MakerSuite) TestBuildBlock_ContiguousKinds() {
	group, err := s.maker.BuildBlock(s.ctx, bmwBlock())
	s.Require().NoError(err)
	s.Equal(16, group.Len())
	s.Equal(16, s.reg.Count())

	for ch := 1; ch <= 8; ch++ {
		seq, err := s.reg.SequentialOfClassification(domain.NewClassification(domain.DetectorBMW, domain.KindADC).WithChannel(ch))
		s.Require().NoError(err)
		s.Equal(domain.SequentialID(ch-1), seq)
	}
	tdc1, err := s.reg.SequentialOfClassification(domain.NewClassification(domain.DetectorBMW, domain.KindTDC))
	s.Require().NoError(err)
	s.Equal(domain.SequentialID(8), tdc1)

	name, err := s.reg.NameOf(tdc1)
	s.Require().NoError(err)
	s.Equal("BMW_TDC_1", name)

	subs := group.Groups()
	s.Require().Len(subs, 2)
	s.Equal("ADC", subs[0].Name)
	s.Equal("TDC", subs[1].Name)
}

// TestBuildAll_OrderStable verifies two builds from the same catalogue
// produce identical layouts.
func (s *MakerSuite) TestBuildAll_OrderStable() {
	cat := catalogue.Default()

	_, err := s.maker.BuildAll(s.ctx, cat)
	s.Require().NoError(err)
	first := s.reg.Entries()

	other := registry.New()
	_, err = New(other).BuildAll(s.ctx, cat)
	s.Require().NoError(err)

	if diff := cmp.Diff(first, other.Entries()); diff != "" {
		s.Failf("layout differs between builds", "(-first +second):\n%s", diff)
	}
	s.Equal(cat.Count(), len(first))
}

func (s *MakerSuite) TestBuildBlock_2D() {
	y := histogram.Axis{Bins: 4, Min: 0, Max: 4}
	block := catalogue.Detector{
		Detector: domain.DetectorTOF,
		Kinds: []catalogue.KindSpec{
			{Kind: domain.KindPlot2D, Channels: 1, X: unitAxis, Y: &y},
		},
	}
	_, err := s.maker.BuildBlock(s.ctx, block)
	s.Require().NoError(err)

	table, err := s.maker.Flatten()
	s.Require().NoError(err)
	h, err := table.At(0)
	s.Require().NoError(err)
	s.Equal(2, h.Dimension())
	s.Require().NoError(table.FillXY(0, 1, 1))
	s.Require().ErrorIs(table.Fill(0, 1), sentinel.ErrInvalidInput)
}

func (s *MakerSuite) TestBuildBlock_Conflict() {
	_, err := s.maker.BuildBlock(s.ctx, bmwBlock())
	s.Require().NoError(err)

	_, err = s.maker.BuildBlock(s.ctx, bmwBlock())
	s.Require().ErrorIs(err, sentinel.ErrConflict)
	s.Equal(16, s.reg.Count())
}

// TestFlatten_Complete verifies position s holds the histogram registered
// as s.
func (s *MakerSuite) TestFlatten_Complete() {
	_, err := s.maker.BuildBlock(s.ctx, bmwBlock())
	s.Require().NoError(err)

	table, err := s.maker.Flatten()
	s.Require().NoError(err)
	s.Equal(s.reg.Count(), table.Len())

	for i := 0; i < table.Len(); i++ {
		seq := domain.SequentialID(i)
		h, err := table.At(seq)
		s.Require().NoError(err)
		name, err := s.reg.NameOf(seq)
		s.Require().NoError(err)
		s.Equal(name, h.Name())
	}

	_, err = table.At(domain.SequentialID(table.Len()))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MakerSuite) TestFlatten_Gaps() {
	_, _, err := s.maker.CreateH1(domain.MustEncode(domain.NewClassification(domain.DetectorBH1, domain.KindADC)), "BH1_ADC_1", unitAxis)
	s.Require().NoError(err)

	// Registrations that bypass the Maker leave holes in the table.
	_, err = s.reg.Register(domain.MustEncode(domain.NewClassification(domain.DetectorBH1, domain.KindTDC)), "orphan_1")
	s.Require().NoError(err)
	_, err = s.reg.Register(domain.MustEncode(domain.NewClassification(domain.DetectorBH2, domain.KindTDC)), "orphan_2")
	s.Require().NoError(err)

	_, err = s.maker.Flatten()
	s.Require().ErrorIs(err, sentinel.ErrFlattenIncomplete)
	s.Contains(err.Error(), "sequential id 1")
	s.Contains(err.Error(), "sequential id 2")
}

func (s *MakerSuite) TestRegistrationOrder() {
	_, err := s.maker.Table()
	s.Require().ErrorIs(err, sentinel.ErrRegistrationOrder)

	_, err = s.maker.BuildBlock(s.ctx, bmwBlock())
	s.Require().NoError(err)
	_, err = s.maker.Flatten()
	s.Require().NoError(err)

	s.Run("create after flatten", func() {
		u := domain.MustEncode(domain.NewClassification(domain.DetectorBH2, domain.KindADC))
		_, _, err := s.maker.CreateH1(u, "late", unitAxis)
		s.Require().ErrorIs(err, sentinel.ErrRegistrationOrder)
		_, err = s.reg.SequentialOf(u)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("direct register after flatten", func() {
		u := domain.MustEncode(domain.NewClassification(domain.DetectorBH2, domain.KindTDC))
		_, err := s.reg.Register(u, "direct")
		s.Require().ErrorIs(err, sentinel.ErrRegistrationOrder)
		table, err := s.maker.Table()
		s.Require().NoError(err)
		s.Equal(table.Len(), s.reg.Count())
	})

	s.Run("flatten twice", func() {
		_, err := s.maker.Flatten()
		s.Require().ErrorIs(err, sentinel.ErrRegistrationOrder)
	})

	s.Run("table available", func() {
		table, err := s.maker.Table()
		s.Require().NoError(err)
		s.Equal(16, table.Len())
	})
}

func TestTable_FillAndReset(t *testing.T) {
	reg := registry.New()
	maker := New(reg)
	_, err := maker.BuildBlock(context.Background(), bmwBlock())
	require.NoError(t, err)
	table, err := maker.Flatten()
	require.NoError(t, err)

	base, err := table.Base(domain.NewClassification(domain.DetectorBMW, domain.KindTDC))
	require.NoError(t, err)
	require.NoError(t, table.Fill(base.Offset(2), 3))

	h, err := table.At(base.Offset(2))
	require.NoError(t, err)
	assert.Equal(t, "BMW_TDC_3", h.Name())
	assert.Equal(t, uint64(1), h.Entries())

	_, err = table.Base(domain.NewClassification(domain.DetectorBH1, domain.KindTDC))
	require.ErrorIs(t, err, sentinel.ErrNotFound)
	require.ErrorIs(t, table.Fill(-1, 0), sentinel.ErrNotFound)

	table.Reset()
	assert.Zero(t, h.Entries())
	assert.Len(t, table.Histograms(), 16)
}
