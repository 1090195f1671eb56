package arxiv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractID(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{"bare modern", "1706.03762", "1706.03762", true},
		{"modern five digits", "see 2301.07041 for details", "2301.07041", true},
		{"modern with version", "2301.07041v3", "2301.07041", true},
		{"arXiv prefix", "arXiv:1706.03762", "1706.03762", true},
		{"arXiv prefix lower case", "ARXIV:1706.03762v2 is great", "1706.03762", true},
		{"abs url", "https://arxiv.org/abs/1706.03762", "1706.03762", true},
		{"bare legacy", "hep-th/9901001", "hep-th/9901001", true},
		{"legacy with subject class", "math.GT/0309136v2", "math.GT/0309136", true},
		{"legacy in url", "https://arxiv.org/abs/cond-mat/0703470", "cond-mat/0703470", true},
		{"legacy upper case", "HEP-TH/9901001", "HEP-TH/9901001", true},
		{"legacy on second line", "similar to\nhep-th/9901001\n", "hep-th/9901001", true},
		{"legacy month 13 rejected", "hep-th/9913001", "", false},
		{"legacy month 00 rejected", "hep-th/9900001", "", false},
		{"no identifier", "Game theory applications in marine biology", "", false},
		{"embedded in longer number", "112301.070419", "", false},
		{"trailing letters", "1706.03762abc", "", false},
		{"too few digits", "1706.037", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractID(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractID_PrefersLegacyFormat(t *testing.T) {
	// 新格式出现在前面时依旧返回旧格式
	got, ok := ExtractID("1706.03762 and hep-th/9901001")
	assert.True(t, ok)
	assert.Equal(t, "hep-th/9901001", got)

	got, ok = ExtractID("hep-th/9901001 then 1706.03762")
	assert.True(t, ok)
	assert.Equal(t, "hep-th/9901001", got)
}

func TestExtractID_FirstMatchWins(t *testing.T) {
	got, ok := ExtractID("2101.00001 2202.00002")
	assert.True(t, ok)
	assert.Equal(t, "2101.00001", got)
}

func TestIDFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"http://arxiv.org/abs/1706.03762v7", "1706.03762"},
		{"https://arxiv.org/abs/2301.07041", "2301.07041"},
		{"http://arxiv.org/pdf/1706.03762v7", "1706.03762"},
		{"https://arxiv.org/pdf/2301.07041v2.pdf", "2301.07041"},
		{"http://arxiv.org/abs/hep-th/9901001v1", "hep-th/9901001"},
		{"http://arxiv.org/abs/solv-int/9901001v2", "solv-int/9901001"},
		{"https://arxiv.org/abs/1706.03762v7/", "1706.03762"},
		{"https://example.org/papers/1706.03762v1?ref=x", "1706.03762"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, IDFromURL(tt.url))
		})
	}
}
