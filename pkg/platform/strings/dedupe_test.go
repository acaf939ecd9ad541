package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "trims whitespace",
			input:    []string{"  U1  ", "U2  ", "  U3"},
			expected: []string{"U1", "U2", "U3"},
		},
		{
			name:     "removes duplicates preserving order",
			input:    []string{"U1", "U2", "U1", "U3", "U2"},
			expected: []string{"U1", "U2", "U3"},
		},
		{
			name:     "drops blanks",
			input:    []string{"", "  ", "U1"},
			expected: []string{"U1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestContainsFold(t *testing.T) {
	orgs := []string{"ROOT1", " sch1id "}
	assert.True(t, ContainsFold(orgs, "root1"))
	assert.True(t, ContainsFold(orgs, "SCH1ID"))
	assert.False(t, ContainsFold(orgs, "OLD"))
	assert.False(t, ContainsFold(orgs, ""))
	assert.False(t, ContainsFold(nil, "ROOT1"))
}
