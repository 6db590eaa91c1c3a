package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "strips markdown fences",
			input: "```json\n{\"mcc\": 50}\n```",
			want:  `{"mcc": 50}`,
		},
		{
			name:  "removes trailing comma",
			input: "{\"a\": 1,\n}",
			want:  "{\"a\": 1\n}",
		},
		{
			name:  "quotes bare keys",
			input: `{arguments: "text", MCC: 40}`,
			want:  `{"arguments": "text","MCC": 40}`,
		},
		{
			name:  "single quotes without double quotes",
			input: `{'a': 1}`,
			want:  `{"a": 1}`,
		},
		{
			name:  "already valid returns unchanged",
			input: `{"a": 1}`,
			want:  `{"a": 1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RepairJSON(tt.input)
			assert.Equal(t, tt.want, got)

			var v map[string]any
			require.NoError(t, json.Unmarshal([]byte(got), &v), "repaired output must be valid JSON")
		})
	}
}
