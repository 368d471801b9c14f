package gates

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"FinScan/internal/domain/models"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	vwapAbove = "Above"
	vwapBelow = "Below"

	sectorHeatNeutral = "⚪"
)

var numberPrinter = message.NewPrinter(language.English)

// Evaluation is the outcome of running every gate over one snapshot.
type Evaluation struct {
	Row      models.BoardRow
	PriceOK  bool
	FloatOK  bool
	VolumeOK bool
	Catalyst models.CatalystKind
	IsADR    bool
}

// Passed reports whether the ticker belongs on the board.
func (e Evaluation) Passed() bool { return e.PriceOK && e.FloatOK }

// Evaluator applies the gate set with a fixed group of thresholds.
type Evaluator struct {
	th Thresholds
}

func NewEvaluator(th Thresholds) *Evaluator {
	return &Evaluator{th: th}
}

// Thresholds returns the thresholds in use.
func (e *Evaluator) Thresholds() Thresholds { return e.th }

// PriceOK passes prices in (0, PriceMax].
func (e *Evaluator) PriceOK(price float64) bool {
	return price > 0 && price <= e.th.PriceMax
}

// VolumeOK checks the latest 15-minute bar against the share gate. A missing bar
// (zero volume) falls back to a float-based allowance, or passes when the float is unknown.
func (e *Evaluator) VolumeOK(vol15 int64, sharesOut float64) bool {
	if vol15 >= e.th.VolumeSharesGate {
		return true
	}
	if vol15 == 0 {
		if sharesOut > 0 {
			return sharesOut*e.th.FallbackAllowPct >= e.th.FallbackVolGate
		}
		return true
	}
	return false
}

// VolumeRatio is vol15 relative to the share gate.
func (e *Evaluator) VolumeRatio(vol15 int64) float64 {
	if e.th.VolumeSharesGate <= 0 {
		return 0
	}
	return round(float64(vol15)/float64(e.th.VolumeSharesGate), 3)
}

// DetectCatalyst matches keywords against the newest headlines. Real keywords win over
// speculative ones.
func (e *Evaluator) DetectCatalyst(headlines []string) (models.CatalystKind, string) {
	if e.th.MaxHeadlines > 0 && len(headlines) > e.th.MaxHeadlines {
		headlines = headlines[:e.th.MaxHeadlines]
	}
	titles := make([]string, 0, len(headlines))
	for _, h := range headlines {
		if h != "" {
			titles = append(titles, strings.ToLower(h))
		}
	}
	blob := strings.Join(titles, " ")

	if containsAny(blob, e.th.RealKeywords) {
		return models.CatalystReal, "Tier-1/2 catalyst"
	}
	if containsAny(blob, e.th.SpecKeywords) {
		return models.CatalystSpec, "Tier-3 speculative"
	}
	return models.CatalystNone, ""
}

// FloatOK rejects oversized floats without a real catalyst, only when enforcement is on.
func (e *Evaluator) FloatOK(sharesOut float64, kind models.CatalystKind) bool {
	if !e.th.EnforceFloatGate {
		return true
	}
	return sharesOut <= 0 || sharesOut <= e.th.FloatMax || kind == models.CatalystReal
}

// DeriveTrigger returns the trigger price and the distance label, e.g. "+2.0%".
func (e *Evaluator) DeriveTrigger(price float64) (float64, float64, string) {
	trigger := round(price*(1+e.th.TriggerPct), 2)
	pct := round((trigger/price-1)*100, 2)
	return trigger, pct, "+" + formatDecimal(pct) + "%"
}

// Evaluate runs all gates over s and builds the board row.
func (e *Evaluator) Evaluate(s models.Snapshot) Evaluation {
	ev := Evaluation{PriceOK: e.PriceOK(s.Price)}
	if !ev.PriceOK {
		return ev
	}

	ev.VolumeOK = e.VolumeOK(s.Vol15, s.SharesOut)
	kind, note := e.DetectCatalyst(s.Headlines)
	ev.Catalyst = kind
	ev.FloatOK = e.FloatOK(s.SharesOut, kind)
	if !ev.FloatOK {
		return ev
	}

	ev.IsADR = LooksLikeADR(s.Symbol, s.Name)
	vwap := VWAPStatus(s.Price, s.PrevClose)
	tier, grade := ClassifyTier(ev.IsADR, kind)
	trigger, gap, label := e.DeriveTrigger(s.Price)

	var notes []string
	if kind == models.CatalystSpec {
		notes = append(notes, "Spec PR — tiny size only")
	}
	if ev.IsADR {
		notes = append(notes, "ADR (Tier-2+)")
	}

	volState := "Below"
	if ev.VolumeOK {
		volState = "Meets"
	}

	ev.Row = models.BoardRow{
		Symbol:       s.Symbol,
		TierGrade:    tier + "/" + grade,
		Trigger:      trigger,
		PctToTrigger: label,
		VWAPStatus:   vwap,
		VolumeVsReq:  fmt.Sprintf("%s (%s)", volState, numberPrinter.Sprintf("%d", s.Vol15)),
		VolumeRatio:  e.VolumeRatio(s.Vol15),
		Catalyst:     fmt.Sprintf("%s: %s", kind, note),
		SectorHeat:   sectorHeatNeutral,
		Note:         strings.Join(notes, "; "),
		Price:        round(s.Price, 3),
		Score:        Score(kind, ev.VolumeOK, vwap, gap),
	}
	return ev
}

// LooksLikeADR flags 4-5 letter symbols ending in Y and names mentioning ADR.
func LooksLikeADR(symbol, name string) bool {
	if strings.HasSuffix(symbol, "Y") && len(symbol) >= 4 && len(symbol) <= 5 {
		return true
	}
	return strings.Contains(strings.ToLower(name), " adr")
}

// ClassifyTier maps ADR status and catalyst to tier and grade.
func ClassifyTier(isADR bool, kind models.CatalystKind) (string, string) {
	if kind == models.CatalystSpec {
		return "Tier-3", "C"
	}
	if isADR {
		return "Tier-2", "B"
	}
	return "Tier-1", "A"
}

// VWAPStatus compares price with the previous close; unknown close reads as Below.
func VWAPStatus(price, prevClose float64) string {
	if prevClose > 0 && price >= prevClose {
		return vwapAbove
	}
	return vwapBelow
}

// Score ranks rows: catalyst weight plus volume and VWAP bonuses, minus the gap to trigger.
func Score(kind models.CatalystKind, volumeOK bool, vwap string, gap float64) float64 {
	score := 2.0
	if kind == models.CatalystReal {
		score = 5
	}
	if volumeOK {
		score += 3
	}
	if vwap == vwapAbove {
		score += 2
	}
	return round(score-gap, 3)
}

// Rank sorts rows by score, highest first. Ties keep their input order.
func Rank(rows []models.BoardRow) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Score > rows[j].Score })
}

func containsAny(blob string, keywords []string) bool {
	if blob == "" {
		return false
	}
	for _, k := range keywords {
		if strings.Contains(blob, k) {
			return true
		}
	}
	return false
}

// formatDecimal prints the shortest representation, always with a fractional part.
func formatDecimal(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// round rounds the exact binary value of v to the given decimal place, so
// 2.295 (stored just below) becomes 2.29.
func round(v float64, places int) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', places, 64), 64)
	if err != nil {
		return v
	}
	return r
}
