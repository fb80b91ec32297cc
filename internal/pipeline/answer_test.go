package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswer_Normalize(t *testing.T) {
	points := []DataPoint{{Company: "Acme", Value: 10, Year: 2023}}

	tests := []struct {
		name string
		in   Answer
		want Answer
	}{
		{
			name: "text drops chart and data",
			in:   Answer{Answer: "There are 10 companies.", DataType: DataTypeText, ChartType: ChartBar, Data: points},
			want: Answer{Answer: "There are 10 companies.", DataType: DataTypeText},
		},
		{
			name: "data keeps valid chart",
			in:   Answer{Answer: "Emissions", DataType: DataTypeData, ChartType: "pie", Data: points},
			want: Answer{Answer: "Emissions", DataType: DataTypeData, ChartType: ChartPie, Data: points},
		},
		{
			name: "data derives missing chart",
			in:   Answer{Answer: "Emissions", DataType: DataTypeData, Data: points},
			want: Answer{Answer: "Emissions", DataType: DataTypeData, ChartType: ChartBar, Data: points},
		},
		{
			name: "data without points becomes text",
			in:   Answer{Answer: "Nothing", DataType: DataTypeData, ChartType: ChartBar},
			want: Answer{Answer: "Nothing", DataType: DataTypeText},
		},
		{
			name: "unknown data type becomes text",
			in:   Answer{Answer: "Hmm", DataType: "table", Data: points},
			want: Answer{Answer: "Hmm", DataType: DataTypeText},
		},
		{
			name: "blank answer gets fallback phrase",
			in:   Answer{Answer: "  ", DataType: DataTypeText},
			want: Answer{Answer: FallbackPhrase, DataType: DataTypeText},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in
			got.Normalize("emissions by company")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAnswer_JSONOmitsAbsentFields(t *testing.T) {
	b, err := json.Marshal(FallbackAnswer())
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer":"Can't able to find data","data_type":"text"}`, string(b))
}

func TestClassifyChart(t *testing.T) {
	tests := []struct {
		name     string
		question string
		data     []DataPoint
		want     ChartType
	}{
		{
			name:     "series over years",
			question: "How did emissions change?",
			data: []DataPoint{
				{Company: "Acme", Value: 10, Year: 2021},
				{Company: "Acme", Value: 12, Year: 2022},
				{Company: "Acme", Value: 9, Year: 2023},
			},
			want: ChartLine,
		},
		{
			name:     "share at one point in time",
			question: "What share of emissions does each company have in 2023?",
			data: []DataPoint{
				{Company: "Acme", Value: 10, Year: 2023},
				{Company: "Globex", Value: 30, Year: 2023},
			},
			want: ChartPie,
		},
		{
			name:     "share with a negative value",
			question: "breakdown of net emissions",
			data: []DataPoint{
				{Company: "Acme", Value: -10, Year: 2023},
				{Company: "Globex", Value: 30, Year: 2023},
			},
			want: ChartBar,
		},
		{
			name:     "comparison",
			question: "Emissions by company for 2023",
			data: []DataPoint{
				{Company: "Acme", Value: 10, Year: 2023},
				{Company: "Globex", Value: 30, Year: 2023},
			},
			want: ChartBar,
		},
		{
			name:     "different companies in different years",
			question: "largest emitter per year",
			data: []DataPoint{
				{Company: "Acme", Value: 10, Year: 2022},
				{Company: "Globex", Value: 30, Year: 2023},
			},
			want: ChartBar,
		},
		{
			name: "empty",
			want: ChartBar,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyChart(tt.question, tt.data))
		})
	}
}
