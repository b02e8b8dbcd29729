// Package wearables turns raw timestamped wearable readings into per-metric
// statistics and a trend label that is safe to show to a patient.
package wearables

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/raphaelgruber/healthrag/internal/models"
)

// MonitoringSentinel replaces any trend or statistic that cannot be computed.
const MonitoringSentinel = "monitoring ongoing — more readings needed"

// StableThreshold is the relative change below which a numeric metric is stable.
const StableThreshold = 0.02

const (
	notRecorded   = "not recorded"
	notApplicable = "not applicable"
	unknownDate   = "unknown date"
	defaultRange  = "N/A"
)

type domain int

const (
	domainNumeric domain = iota
	domainCompound
	domainCategorical
)

var compoundPattern = regexp.MustCompile(`^\s*-?\d+(?:\.\d+)?\s*/\s*-?\d+(?:\.\d+)?\s*$`)

// reading is a filtered reading with its value rendered as text.
type reading struct {
	text      string
	timestamp string
}

// SummarizeAll summarizes every metric, preserving input order. Metrics with
// no valid readings are omitted.
func SummarizeAll(metrics []models.WearableMetric) models.WearableSummary {
	out := models.WearableSummary{Metrics: []models.MetricSummary{}}
	for _, m := range metrics {
		if s, ok := Summarize(m); ok {
			out.Metrics = append(out.Metrics, s)
		}
	}
	out.Available = len(out.Metrics) > 0
	return out
}

// Summarize computes the statistics for one metric. It returns false when no
// reading survives filtering.
func Summarize(metric models.WearableMetric) (models.MetricSummary, bool) {
	readings := filterReadings(metric.Readings)
	if len(readings) == 0 {
		return models.MetricSummary{}, false
	}
	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].timestamp < readings[j].timestamp
	})

	unit := strings.TrimSpace(metric.Unit)
	normalRange := metric.NormalRange
	if strings.TrimSpace(normalRange) == "" {
		normalRange = defaultRange
	}

	s := models.MetricSummary{
		Metric:        metric.Name,
		Unit:          unit,
		NormalRange:   normalRange,
		LatestValue:   withUnit(readings[len(readings)-1].text, unit),
		PreviousValue: notRecorded,
		ReadingsCount: len(readings),
		DatedReadings: make([]models.DatedReading, 0, len(readings)),
		TimeRange: models.TimeRange{
			Start: readings[0].timestamp,
			End:   readings[len(readings)-1].timestamp,
		},
	}
	if len(readings) > 1 {
		s.PreviousValue = withUnit(readings[len(readings)-2].text, unit)
	}
	for _, r := range readings {
		s.DatedReadings = append(s.DatedReadings, models.DatedReading{
			Date:  dateOf(r.timestamp),
			Value: withUnit(r.text, unit),
		})
	}

	if len(readings) < 2 {
		s.AverageValue = MonitoringSentinel
		s.Min = MonitoringSentinel
		s.Max = MonitoringSentinel
		s.Trend = MonitoringSentinel
		return s, true
	}

	switch classify(readings) {
	case domainNumeric:
		values := make([]float64, len(readings))
		for i, r := range readings {
			values[i], _ = parseFloat(r.text)
		}
		lo, hi := minMax(values)
		s.AverageValue = withUnit(fmt.Sprintf("%.1f", round1(mean(values))), unit)
		s.Min = withUnit(formatFloat(lo), unit)
		s.Max = withUnit(formatFloat(hi), unit)
		s.Trend = numericTrend(values)

	case domainCompound:
		systolic := make([]float64, len(readings))
		diastolic := make([]float64, len(readings))
		for i, r := range readings {
			systolic[i], diastolic[i] = splitCompound(r.text)
		}
		lo, hi := minMax(systolic)
		s.AverageValue = withUnit(fmt.Sprintf("%.0f/%.0f", mean(systolic), mean(diastolic)), unit)
		s.Min = formatFloat(lo) + " systolic"
		s.Max = formatFloat(hi) + " systolic"
		s.Trend = numericTrend(systolic)

	default:
		first, last := readings[0].text, readings[len(readings)-1].text
		if first == last {
			s.Trend = "stable"
			s.AverageValue = "consistent readings"
		} else {
			s.Trend = "changed between readings"
			s.AverageValue = "variable readings"
		}
		s.Min = notApplicable
		s.Max = notApplicable
	}

	s.Trend = SanitizeTrend(s.Trend)
	return s, true
}

// SanitizeTrend maps internal placeholder tokens to plain language. It is
// applied when summaries are built and again when they are rendered.
func SanitizeTrend(trend string) string {
	t := strings.TrimSpace(trend)
	lower := strings.ToLower(t)
	if t == "" || strings.Contains(t, "N/A") ||
		strings.Contains(lower, "insufficient") ||
		strings.Contains(lower, "non-numeric") {
		return MonitoringSentinel
	}
	return trend
}

// numericTrend labels the change between the first and last value.
func numericTrend(values []float64) string {
	if len(values) < 2 {
		return MonitoringSentinel
	}
	first, last := values[0], values[len(values)-1]
	if first == 0 {
		return MonitoringSentinel
	}
	diff := last - first
	ratio := math.Abs(diff) / math.Abs(first)
	if ratio < StableThreshold {
		return "stable"
	}
	pct := ratio * 100
	if diff > 0 {
		return fmt.Sprintf("increasing (%.1f%% rise over recorded period)", pct)
	}
	return fmt.Sprintf("decreasing (%.1f%% drop over recorded period)", pct)
}

func filterReadings(raw []models.MetricReading) []reading {
	out := make([]reading, 0, len(raw))
	for _, r := range raw {
		text, ok := renderValue(r.Value)
		if !ok {
			continue
		}
		out = append(out, reading{text: text, timestamp: r.Timestamp})
	}
	return out
}

// renderValue converts a raw value to display text, rejecting null-like values.
func renderValue(v any) (string, bool) {
	var text string
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		text = strings.TrimSpace(val)
	case float64:
		text = formatFloat(val)
	case float32:
		text = formatFloat(float64(val))
	case int:
		text = strconv.Itoa(val)
	case int64:
		text = strconv.FormatInt(val, 10)
	case uint64:
		text = strconv.FormatUint(val, 10)
	default:
		text = strings.TrimSpace(fmt.Sprint(val))
	}
	switch text {
	case "", "None", "null":
		return "", false
	}
	return text, true
}

func classify(readings []reading) domain {
	numeric, compound := true, true
	for _, r := range readings {
		if _, ok := parseFloat(r.text); !ok {
			numeric = false
		}
		if !compoundPattern.MatchString(r.text) {
			compound = false
		}
	}
	switch {
	case numeric:
		return domainNumeric
	case compound:
		return domainCompound
	default:
		return domainCategorical
	}
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func splitCompound(s string) (float64, float64) {
	parts := strings.SplitN(s, "/", 2)
	a, _ := parseFloat(parts[0])
	b, _ := parseFloat(parts[1])
	return a, b
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func minMax(values []float64) (float64, float64) {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func withUnit(value, unit string) string {
	return strings.TrimSpace(value + " " + unit)
}

func dateOf(ts string) string {
	if ts == "" {
		return unknownDate
	}
	if len(ts) > 10 {
		return ts[:10]
	}
	return ts
}
