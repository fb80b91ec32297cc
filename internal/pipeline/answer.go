package pipeline

import (
	"strings"
)

// FallbackPhrase is the answer given when no usable data could be found.
const FallbackPhrase = "Can't able to find data"

// DataType tells the front end whether to render text or a chart.
type DataType string

const (
	DataTypeText DataType = "text"
	DataTypeData DataType = "data"
)

// ChartType is the suggested visualisation for a data answer.
type ChartType string

const (
	ChartBar  ChartType = "Bar"
	ChartLine ChartType = "Line"
	ChartPie  ChartType = "Pie"
)

// ParseChartType matches name case-insensitively. ok is false for anything
// other than Bar, Line or Pie.
func ParseChartType(name string) (ChartType, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bar":
		return ChartBar, true
	case "line":
		return ChartLine, true
	case "pie":
		return ChartPie, true
	}
	return "", false
}

// DataPoint is one chart value.
type DataPoint struct {
	Company string  `json:"company"`
	Value   float64 `json:"value"`
	Year    int     `json:"year"`
}

// Answer is the payload returned for a question. Data and ChartType are set
// exactly when DataType is "data".
type Answer struct {
	Answer    string      `json:"answer"`
	DataType  DataType    `json:"data_type"`
	ChartType ChartType   `json:"chart_type,omitempty"`
	Data      []DataPoint `json:"data,omitempty"`
}

// FallbackAnswer is the text answer used when composition fails.
func FallbackAnswer() *Answer {
	return &Answer{Answer: FallbackPhrase, DataType: DataTypeText}
}

// Normalize enforces the payload invariant in place: text answers carry no
// data or chart, data answers always carry both. A data answer without points
// becomes text. An unknown chart type is derived with ClassifyChart.
func (a *Answer) Normalize(question string) {
	a.Answer = strings.TrimSpace(a.Answer)
	if a.Answer == "" {
		a.Answer = FallbackPhrase
	}

	if a.DataType != DataTypeData || len(a.Data) == 0 {
		a.DataType = DataTypeText
		a.ChartType = ""
		a.Data = nil
		return
	}

	if ct, ok := ParseChartType(string(a.ChartType)); ok {
		a.ChartType = ct
	} else {
		a.ChartType = ClassifyChart(question, a.Data)
	}
}

var proportionWords = []string{"share", "proportion", "percent", "breakdown", "distribution", "split"}

const maxPieSlices = 8

// ClassifyChart derives a chart type from the data shape. A series where a
// company appears in more than one year is a Line; a small all-positive
// single-year set asked about as a share or breakdown is a Pie; everything
// else is a Bar.
func ClassifyChart(question string, data []DataPoint) ChartType {
	if len(data) == 0 {
		return ChartBar
	}

	years := make(map[int]struct{})
	seen := make(map[string]int)
	repeated := false
	for _, p := range data {
		years[p.Year] = struct{}{}
		if y, ok := seen[p.Company]; ok && y != p.Year {
			repeated = true
		}
		seen[p.Company] = p.Year
	}

	if len(years) > 1 && repeated {
		return ChartLine
	}

	if len(years) == 1 && len(data) <= maxPieSlices && allPositive(data) && mentionsProportion(question) {
		return ChartPie
	}
	return ChartBar
}

func allPositive(data []DataPoint) bool {
	for _, p := range data {
		if p.Value <= 0 {
			return false
		}
	}
	return true
}

func mentionsProportion(question string) bool {
	q := strings.ToLower(question)
	for _, w := range proportionWords {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}
