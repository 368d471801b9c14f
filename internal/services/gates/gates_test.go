package gates

import (
	"testing"

	"FinScan/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEval() *Evaluator { return NewEvaluator(DefaultThresholds()) }

func TestPriceOK(t *testing.T) {
	e := newEval()
	cases := []struct {
		price float64
		want  bool
	}{
		{0, false},
		{-1, false},
		{0.5, true},
		{30, true},
		{30.01, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, e.PriceOK(c.price), "price %v", c.price)
	}
}

func TestVolumeOK(t *testing.T) {
	e := newEval()
	tests := []struct {
		name      string
		vol15     int64
		sharesOut float64
		want      bool
	}{
		{"meets share gate", 2_000_000, 0, true},
		{"above share gate", 5_000_000, 1e9, true},
		{"below gate with bar", 1_999_999, 1e9, false},
		{"missing bar, unknown float", 0, 0, true},
		{"missing bar, float allowance ok", 0, 200_000_000, true},
		{"missing bar, small float", 0, 50_000_000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.VolumeOK(tt.vol15, tt.sharesOut))
		})
	}
}

func TestVolumeRatio(t *testing.T) {
	e := newEval()
	assert.Equal(t, 0.5, e.VolumeRatio(1_000_000))
	assert.Equal(t, 1.234, e.VolumeRatio(2_468_000))

	th := DefaultThresholds()
	th.VolumeSharesGate = 0
	assert.Equal(t, 0.0, NewEvaluator(th).VolumeRatio(10))
}

func TestDetectCatalyst(t *testing.T) {
	e := newEval()

	kind, note := e.DetectCatalyst([]string{"Company Beats EARNINGS estimates"})
	assert.Equal(t, models.CatalystReal, kind)
	assert.Equal(t, "Tier-1/2 catalyst", note)

	kind, note = e.DetectCatalyst([]string{"Board launches strategic review"})
	assert.Equal(t, models.CatalystSpec, kind)
	assert.Equal(t, "Tier-3 speculative", note)

	kind, _ = e.DetectCatalyst([]string{"drug pipeline update", "M&A chatter"})
	assert.Equal(t, models.CatalystReal, kind, "real keywords win")

	kind, note = e.DetectCatalyst(nil)
	assert.Equal(t, models.CatalystNone, kind)
	assert.Empty(t, note)
}

func TestDetectCatalystOnlyNewestHeadlines(t *testing.T) {
	th := DefaultThresholds()
	th.MaxHeadlines = 2
	e := NewEvaluator(th)

	kind, _ := e.DetectCatalyst([]string{"quiet day", "nothing new", "merger announced"})
	assert.Equal(t, models.CatalystNone, kind)
}

func TestFloatOK(t *testing.T) {
	e := newEval()
	assert.True(t, e.FloatOK(1e12, models.CatalystNone), "not enforced by default")

	th := DefaultThresholds()
	th.EnforceFloatGate = true
	e = NewEvaluator(th)
	assert.False(t, e.FloatOK(200_000_000, models.CatalystNone))
	assert.False(t, e.FloatOK(200_000_000, models.CatalystSpec))
	assert.True(t, e.FloatOK(200_000_000, models.CatalystReal))
	assert.True(t, e.FloatOK(150_000_000, models.CatalystNone))
	assert.True(t, e.FloatOK(0, models.CatalystNone), "unknown float passes")
}

func TestLooksLikeADR(t *testing.T) {
	assert.True(t, LooksLikeADR("NTDOY", ""))
	assert.True(t, LooksLikeADR("BAYY", ""))
	assert.False(t, LooksLikeADR("SY", ""))
	assert.False(t, LooksLikeADR("ABCDEY", ""))
	assert.True(t, LooksLikeADR("NIO", "NIO Inc ADR"))
	assert.False(t, LooksLikeADR("NIO", "NIO Inc"))
}

func TestClassifyTier(t *testing.T) {
	tier, grade := ClassifyTier(true, models.CatalystSpec)
	assert.Equal(t, "Tier-3", tier)
	assert.Equal(t, "C", grade)

	tier, grade = ClassifyTier(true, models.CatalystReal)
	assert.Equal(t, "Tier-2", tier)
	assert.Equal(t, "B", grade)

	tier, grade = ClassifyTier(false, models.CatalystNone)
	assert.Equal(t, "Tier-1", tier)
	assert.Equal(t, "A", grade)
}

func TestDeriveTrigger(t *testing.T) {
	e := newEval()
	trigger, pct, label := e.DeriveTrigger(10)
	assert.Equal(t, 10.2, trigger)
	assert.Equal(t, 2.0, pct)
	assert.Equal(t, "+2.0%", label)

	trigger, pct, label = e.DeriveTrigger(1.23)
	assert.Equal(t, 1.25, trigger)
	assert.Equal(t, 1.63, pct)
	assert.Equal(t, "+1.63%", label)
}

func TestDeriveTriggerRoundsStoredValue(t *testing.T) {
	e := newEval()
	cases := []struct {
		price   float64
		trigger float64
		pct     float64
	}{
		{2.25, 2.29, 1.78},
		{4.75, 4.84, 1.89},
		{15.25, 15.55, 1.97},
	}
	for _, c := range cases {
		trigger, pct, _ := e.DeriveTrigger(c.price)
		assert.Equal(t, c.trigger, trigger, "price %v", c.price)
		assert.Equal(t, c.pct, pct, "price %v", c.price)
	}
}

func TestVWAPStatus(t *testing.T) {
	assert.Equal(t, "Above", VWAPStatus(10, 9.5))
	assert.Equal(t, "Above", VWAPStatus(10, 10))
	assert.Equal(t, "Below", VWAPStatus(9, 10))
	assert.Equal(t, "Below", VWAPStatus(9, 0))
}

func TestScore(t *testing.T) {
	assert.Equal(t, 8.0, Score(models.CatalystReal, true, "Above", 2.0))
	assert.Equal(t, 0.0, Score(models.CatalystNone, false, "Below", 2.0))
	assert.Equal(t, 3.0, Score(models.CatalystSpec, true, "Below", 2.0))
}

func TestEvaluateBuildsRow(t *testing.T) {
	e := newEval()
	ev := e.Evaluate(models.Snapshot{
		Symbol:    "SOFI",
		Name:      "SoFi Technologies",
		Price:     10,
		PrevClose: 9.8,
		SharesOut: 1e9,
		Vol15:     2_100_000,
		Headlines: []string{"SoFi raises guidance"},
	})

	require.True(t, ev.Passed())
	row := ev.Row
	assert.Equal(t, "SOFI", row.Symbol)
	assert.Equal(t, "Tier-1/A", row.TierGrade)
	assert.Equal(t, 10.2, row.Trigger)
	assert.Equal(t, "+2.0%", row.PctToTrigger)
	assert.Equal(t, "Above", row.VWAPStatus)
	assert.Equal(t, "Meets (2,100,000)", row.VolumeVsReq)
	assert.Equal(t, 1.05, row.VolumeRatio)
	assert.Equal(t, "Real: Tier-1/2 catalyst", row.Catalyst)
	assert.Equal(t, "⚪", row.SectorHeat)
	assert.Empty(t, row.Note)
	assert.Equal(t, 10.0, row.Price)
	assert.Equal(t, 8.0, row.Score)
}

func TestEvaluateSpecADRNotes(t *testing.T) {
	e := newEval()
	ev := e.Evaluate(models.Snapshot{
		Symbol:    "ABCY",
		Price:     4.5678,
		Vol15:     12_345,
		Headlines: []string{"company will explore options"},
	})

	require.True(t, ev.Passed())
	assert.True(t, ev.IsADR)
	assert.False(t, ev.VolumeOK)
	assert.Equal(t, "Tier-3/C", ev.Row.TierGrade)
	assert.Equal(t, "Below (12,345)", ev.Row.VolumeVsReq)
	assert.Equal(t, "Spec: Tier-3 speculative", ev.Row.Catalyst)
	assert.Equal(t, "Spec PR — tiny size only; ADR (Tier-2+)", ev.Row.Note)
	assert.Equal(t, 4.568, ev.Row.Price)
	assert.Equal(t, "None: ", NewEvaluator(DefaultThresholds()).Evaluate(models.Snapshot{Symbol: "F", Price: 11}).Row.Catalyst)
}

func TestEvaluateRejects(t *testing.T) {
	e := newEval()
	assert.False(t, e.Evaluate(models.Snapshot{Symbol: "TSLA", Price: 250}).Passed())
	assert.False(t, e.Evaluate(models.Snapshot{Symbol: "X", Price: 0}).Passed())

	th := DefaultThresholds()
	th.EnforceFloatGate = true
	ev := NewEvaluator(th).Evaluate(models.Snapshot{Symbol: "F", Price: 11, SharesOut: 4e9})
	assert.True(t, ev.PriceOK)
	assert.False(t, ev.FloatOK)
	assert.False(t, ev.Passed())
}

func TestRankStable(t *testing.T) {
	rows := []models.BoardRow{
		{Symbol: "A", Score: 1},
		{Symbol: "B", Score: 3},
		{Symbol: "C", Score: 1},
		{Symbol: "D", Score: 5},
	}
	Rank(rows)
	got := make([]string, len(rows))
	for i, r := range rows {
		got[i] = r.Symbol
	}
	assert.Equal(t, []string{"D", "B", "A", "C"}, got)
}
