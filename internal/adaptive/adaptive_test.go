package adaptive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectiveBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  Directive
	}{
		{0, Easier},
		{69, Easier},
		{69.99, Easier},
		{70, Maintain},
		{85, Maintain},
		{90, Maintain},
		{90.5, Harder},
		{91, Harder},
		{100, Harder},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DirectiveFor(tt.score), "score %v", tt.score)
	}
}
