package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruciblehq/tessera/internal/platform"
)

func TestParseOutput(t *testing.T) {
	g := newGenerator()
	tests := []struct {
		name      string
		allocator Allocator
		target    string
		wantErr   bool
	}{
		{name: "default", allocator: AllocatorDefault, target: platform.Native},
		{name: "jemalloc", allocator: AllocatorJemalloc, target: platform.Native},
		{name: "hmalloc-native", allocator: AllocatorHardened, target: platform.Native},
		{name: "jemalloc-aarch64-unknown-linux-musl", allocator: AllocatorJemalloc, target: "aarch64-unknown-linux-musl"},
		{name: "default-x86_64-unknown-linux-musl", allocator: AllocatorDefault, target: "x86_64-unknown-linux-musl"},
		{name: "tcmalloc", wantErr: true},
		{name: "jemalloc-riscv64gc-unknown-linux-musl", wantErr: true},
		{name: "jemalloc-", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, target, err := g.ParseOutput(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidOutput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.allocator, a)
			assert.Equal(t, tt.target, target)
		})
	}
}

func TestGenerateOutputs(t *testing.T) {
	g := newGenerator()
	variants, err := g.GenerateOutputs(
		[]string{"jemalloc", "hmalloc-aarch64-unknown-linux-musl", "default-x86_64-unknown-linux-gnu"},
		[]Profile{ProfileRelease},
	)
	require.NoError(t, err)

	var names []string
	for _, v := range variants {
		names = append(names, v.Name())
	}
	assert.Equal(t, []string{"default", "jemalloc", "hmalloc-aarch64-unknown-linux-musl"}, names)
}
