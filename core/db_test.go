package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOrderings(t *testing.T) {
	tests := []struct {
		in   string
		want []DBOrdering
	}{
		{in: "", want: nil},
		{in: "name", want: []DBOrdering{{Field: "name", Ascending: true}}},
		{in: "-appraisal_score, name", want: []DBOrdering{{Field: "appraisal_score"}, {Field: "name", Ascending: true}}},
		{in: " , -,name,", want: []DBOrdering{{Field: "name", Ascending: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseOrderings(tt.in))
		})
	}
}

func TestDBOrdering_String(t *testing.T) {
	assert.Equal(t, "name ASC", DBOrdering{Field: "name", Ascending: true}.String())
	assert.Equal(t, "created_at DESC", DBOrdering{Field: "created_at"}.String())
}
