package models

// MetricReading is one raw wearable reading. Value is a number, a numeric
// string, a compound "X/Y" string or an opaque category such as "NSR".
type MetricReading struct {
	Value     any    `json:"value" yaml:"value"`
	Timestamp string `json:"timestamp" yaml:"timestamp"`
}

// WearableMetric is a metric definition with its unordered readings.
type WearableMetric struct {
	Name        string          `json:"metric" yaml:"metric"`
	Unit        string          `json:"unit,omitempty" yaml:"unit"`
	NormalRange string          `json:"normal_range,omitempty" yaml:"normal_range"`
	Readings    []MetricReading `json:"readings" yaml:"readings"`
}

// DatedReading is a display-ready reading.
type DatedReading struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

// TimeRange spans the first and last reading timestamps.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// MetricSummary is the derived statistics for one metric.
type MetricSummary struct {
	Metric        string         `json:"metric"`
	Unit          string         `json:"unit"`
	NormalRange   string         `json:"normal_range"`
	LatestValue   string         `json:"latest_value"`
	PreviousValue string         `json:"previous_value"`
	AverageValue  string         `json:"average_value"`
	Min           string         `json:"min"`
	Max           string         `json:"max"`
	Trend         string         `json:"trend"`
	ReadingsCount int            `json:"readings_count"`
	DatedReadings []DatedReading `json:"dated_readings"`
	TimeRange     TimeRange      `json:"time_range"`
}

// WearableSummary is the wearable block of an evidence context.
type WearableSummary struct {
	Available bool            `json:"available"`
	Metrics   []MetricSummary `json:"metrics"`
}
