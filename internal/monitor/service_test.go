package monitor

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"onlinemon/internal/analyzer"
	"onlinemon/internal/catalogue"
	"onlinemon/internal/factory"
	"onlinemon/internal/histogram"
	"onlinemon/internal/platform/metrics"
	"onlinemon/internal/registry"
	"onlinemon/internal/scaler"
	"onlinemon/internal/unpacker"
	"onlinemon/pkg/domain"
	dErrors "onlinemon/pkg/domain-errors"
	"onlinemon/pkg/platform/sentinel"
)

const fixtureCatalogue = `
detectors:
  - detector: BH2
    device: BH2
    kinds:
      - {kind: ADC, channels: 2, data: adc, x: {bins: 8, min: 0, max: 8}}
      - kind: 2DPlot
        channels: 1
        segments: 2
        data: adc
        name: "{detector}_ADC_vs_segment"
        x: {bins: 2, min: 0, max: 2}
        y: {bins: 8, min: 0, max: 8}
`

type fixedStatus analyzer.Status

func (f fixedStatus) Status() analyzer.Status { return analyzer.Status(f) }

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	reg     *registry.Registry
	table   *factory.Table
	metrics *metrics.Metrics
	svc     *Service
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	cat, err := catalogue.Parse([]byte(fixtureCatalogue))
	s.Require().NoError(err)

	s.reg = registry.New()
	maker := factory.New(s.reg)
	groups, err := maker.BuildAll(s.ctx, cat)
	s.Require().NoError(err)
	s.table, err = maker.Flatten()
	s.Require().NoError(err)

	s.metrics = metrics.New(prometheus.NewRegistry())
	s.svc, err = New(s.reg, s.table, groups,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithStatus(fixedStatus{Run: 12, Event: 99, Events: 100}),
	)
	s.Require().NoError(err)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) TestList() {
	entries := s.svc.List(s.ctx)
	s.Require().Len(entries, 3)
	s.Equal("BH2_ADC_1", entries[0].Name)
	s.Equal("BH2_ADC_vs_segment", entries[2].Name)
}

func (s *ServiceSuite) TestGet() {
	s.Require().NoError(s.table.Fill(1, 3))

	view, err := s.svc.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal("BH2_ADC_2", view.Name)
	s.Equal(domain.MustEncode(domain.NewClassification(domain.DetectorBH2, domain.KindADC).WithChannel(2)), view.Unique)
	s.Equal(uint64(1), view.Snapshot.Entries)

	_, err = s.svc.Get(s.ctx, 3)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.LookupMisses.WithLabelValues("http")))
}

func (s *ServiceSuite) TestGetByName() {
	view, err := s.svc.GetByName(s.ctx, "BH2_ADC_vs_segment")
	s.Require().NoError(err)
	s.Equal(2, view.Snapshot.Dimension)

	_, err = s.svc.GetByName(s.ctx, "nope")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestGetByUnique() {
	u := domain.MustEncode(domain.NewClassification(domain.DetectorBH2, domain.KindADC))
	view, err := s.svc.GetByUnique(s.ctx, u)
	s.Require().NoError(err)
	s.Equal(domain.SequentialID(0), view.Sequential)

	_, err = s.svc.GetByUnique(s.ctx, domain.MustEncode(domain.NewClassification(domain.DetectorBH1, domain.KindADC)))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.svc.GetByUnique(s.ctx, -5)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *ServiceSuite) TestGroups() {
	groups := s.svc.Groups(s.ctx)
	s.Require().Len(groups, 1)
	s.Equal("BH2", groups[0].Name)
	s.Require().Len(groups[0].Groups, 2)
	s.Equal([]string{"BH2_ADC_1", "BH2_ADC_2"}, groups[0].Groups[0].Histograms)
}

func (s *ServiceSuite) TestResetAndSnapshots() {
	s.Require().NoError(s.table.Fill(0, 1))
	s.Require().NoError(s.table.FillXY(2, 1, 1))

	views := s.svc.Snapshots(s.ctx)
	s.Require().Len(views, 3)
	s.Equal(uint64(1), views[0].Snapshot.Entries)
	s.Equal(uint64(1), views[2].Snapshot.Entries)

	s.svc.Reset(s.ctx)
	for _, v := range s.svc.Snapshots(s.ctx) {
		s.Zero(v.Snapshot.Entries, v.Name)
	}
}

func (s *ServiceSuite) TestStatus() {
	st := s.svc.Status(s.ctx)
	s.Equal(12, st.Run)

	bare, err := New(s.reg, s.table, nil)
	s.Require().NoError(err)
	s.Equal(-1, bare.Status(s.ctx).Run)
}

func (s *ServiceSuite) TestScalers() {
	s.Run("not configured", func() {
		_, err := s.svc.Scalers(s.ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Nil(s.svc.Spills(s.ctx))
	})

	s.Run("reports spills", func() {
		mon, err := scaler.New(&catalogue.ScalerSpec{
			Device:   "Scaler",
			Clock:    catalogue.ScalerChannel{Name: "clock", Data: "m0", Segment: 1},
			Counters: []catalogue.ScalerChannel{{Name: "kaon", Data: "m2", Segment: 19}},
		})
		s.Require().NoError(err)
		mon.Process(s.ctx, unpacker.NewMemoryEvent(5, 1).Add("Scaler", "m0", 1, 40).Add("Scaler", "m2", 19, 7))
		mon.Process(s.ctx, unpacker.NewMemoryEvent(5, 2).Add("Scaler", "m0", 1, 2))

		svc, err := New(s.reg, s.table, nil, WithScaler(mon))
		s.Require().NoError(err)
		summary, err := svc.Scalers(s.ctx)
		s.Require().NoError(err)
		s.Equal(5, summary.Run)
		s.Equal(1, summary.Spills)
		s.Require().Len(svc.Spills(s.ctx), 1)
		s.Equal(uint64(7), svc.Spills(s.ctx)[0].Counts["kaon"])
	})
}

func (s *ServiceSuite) TestNew_RequiresTable() {
	_, err := New(s.reg, nil, nil)
	s.ErrorIs(err, sentinel.ErrRegistrationOrder)
}

func TestCumulativeBuckets(t *testing.T) {
	h, err := histogram.NewH1("h", "", histogram.Axis{Bins: 4, Min: 0, Max: 4})
	if err != nil {
		t.Fatal(err)
	}
	h.Fill(-1) // underflow
	h.Fill(0.5)
	h.Fill(1.5)
	h.Fill(3.5)
	h.Fill(9) // overflow

	got := cumulativeBuckets(h.Snapshot(), 2)
	want := map[float64]uint64{2: 3, 4: 4}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for le, n := range want {
		if got[le] != n {
			t.Fatalf("bucket le=%g: got %d, want %d", le, got[le], n)
		}
	}
}

func (s *ServiceSuite) TestCollector() {
	s.Require().NoError(s.table.Fill(0, 1))

	c := NewCollector(s.reg, s.table, 4)
	// Three entry gauges plus two 1-D histograms.
	s.Equal(5, testutil.CollectAndCount(c))
	s.Equal(3, testutil.CollectAndCount(c, "onlinemon_histogram_entries"))
	s.Equal(2, testutil.CollectAndCount(c, "onlinemon_histogram"))
}
