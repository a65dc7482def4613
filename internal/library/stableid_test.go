package library

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStableID_KnownValues(t *testing.T) {
	assert.Equal(t, "18b343b257bff025", StableID("movies", "foo.mp4"))
	assert.Equal(t, "a7d6cc8d5be7637c", StableID("movies", "sub/bar.mkv"))
	assert.Equal(t, "4a12c15235107ca0", StableID("shows", "foo.mp4"))
}

func TestStableID_Deterministic(t *testing.T) {
	a := StableID("movies", "sub/bar.mkv")
	b := StableID("movies", "sub/bar.mkv")
	assert.Equal(t, a, b)
	assert.Len(t, a, IDLength)
	assert.True(t, ValidID(a))
}

func TestStableID_DependsOnSourceAndPath(t *testing.T) {
	assert.NotEqual(t, StableID("movies", "foo.mp4"), StableID("shows", "foo.mp4"))
	assert.NotEqual(t, StableID("movies", "foo.mp4"), StableID("movies", "bar.mp4"))
}

func TestValidID(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"18b343b257bff025", true},
		{"18B343B257BFF025", false},
		{"18b343b257bff02", false},
		{"18b343b257bff0250", false},
		{"zzzzzzzzzzzzzzzz", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidID(tt.in), tt.in)
	}
}
