package snapshot

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundtracker/internal/fetcher"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Record
	}{
		{
			name: "four fields",
			text: "₹1,234.50\n-12.30 (0.99%) 1D",
			want: Record{Price: "₹1,234.50", AbsoluteChange: "-12.30", PercentageChange: "(0.99%)", TimeFrame: "1D"},
		},
		{
			name: "separate currency line",
			text: "₹\n1,234.50\n+12.30 (1.01%) 1D",
			want: Record{Currency: "₹", Price: "1,234.50", AbsoluteChange: "+12.30", PercentageChange: "(1.01%)", TimeFrame: "1D"},
		},
		{
			name: "surrounding whitespace and blank lines",
			text: "\n  512.00 \r\n\n 3.10   (0.61%)   1D \n",
			want: Record{Price: "512.00", AbsoluteChange: "3.10", PercentageChange: "(0.61%)", TimeFrame: "1D"},
		},
		{
			name: "whole number percentage",
			text: "100\n-5 (5%) 1W",
			want: Record{Price: "100", AbsoluteChange: "-5", PercentageChange: "(5%)", TimeFrame: "1W"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", "   \n "},
		{"three fields", "1,234.50\n-12.30 (0.99%)"},
		{"six fields", "₹\n1,234.50\n-12.30 (0.99%) 1D extra"},
		{"five fields with numeric head", "12\n1,234.50\n-12.30 (0.99%) 1D"},
		{"percentage without parentheses", "1,234.50\n-12.30 0.99% 1D"},
		{"percentage not numeric", "1,234.50\n-12.30 (n/a%) 1D"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			require.Error(t, err)
			assert.Equal(t, fetcher.ErrorTypeData, fetcher.TypeOf(err))
		})
	}
}

func TestEnrichedStock_JSONOmitsMissingSnapshot(t *testing.T) {
	missing, err := json.Marshal(EnrichedStock{Name: "X", Link: "/stocks/x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"X","link":"/stocks/x"}`, string(missing))

	present, err := json.Marshal(EnrichedStock{Name: "X", Link: "/stocks/x", Record: &Record{
		Price: "10", AbsoluteChange: "-1.50", PercentageChange: "(1.50%)", TimeFrame: "1D",
	}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"X","link":"/stocks/x","price":"10","absolute_change":"-1.50","percentage_change":"(1.50%)","time_frame":"1D"}`, string(present))
}
