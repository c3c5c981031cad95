package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveContainer(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"books", ContainerBooks, true},
		{"novel", ContainerBooks, true},
		{"comic", ContainerBooks, true},
		{"manga", ContainerBooks, true},
		{"Audiobook", ContainerBooks, true},
		{"dvd", ContainerMovies, true},
		{"Blu-Ray", ContainerMovies, true},
		{"series", ContainerTV, true},
		{" game ", ContainerGames, true},
		{"vinyl", ContainerMusic, true},
		{"boardgame", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ResolveContainer(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
