package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayPathShortestUniqueSuffix(t *testing.T) {
	tests := []struct {
		name     string
		filepath string
		existing map[string]bool
		want     string
	}{
		{
			name:     "two segments when available",
			filepath: "projects/alpha/readme.md",
			existing: map[string]bool{},
			want:     "alpha/readme.md",
		},
		{
			name:     "single segment path stays whole",
			filepath: "readme.md",
			existing: map[string]bool{},
			want:     "readme.md",
		},
		{
			name:     "lengthens on collision",
			filepath: "projects/alpha/readme.md",
			existing: map[string]bool{"alpha/readme.md": true},
			want:     "projects/alpha/readme.md",
		},
		{
			name:     "falls back to full path when all suffixes collide",
			filepath: "a/b/c.md",
			existing: map[string]bool{"b/c.md": true, "a/b/c.md": true},
			want:     "a/b/c.md",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayPath(tt.filepath, tt.existing))
		})
	}
}
