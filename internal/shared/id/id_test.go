package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateString(t *testing.T) {
	g := NewGenerator()

	a := g.GenerateString()
	b := g.GenerateString()

	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
	assert.True(t, IsValid(a))
}

func TestGenerateWithPrefix(t *testing.T) {
	g := NewGenerator()

	s := g.GenerateWithPrefix("vm")
	assert.True(t, strings.HasPrefix(s, "vm_"))
	assert.True(t, IsValid(strings.TrimPrefix(s, "vm_")))
}

func TestTypedIDs(t *testing.T) {
	vm := NewVMID()
	req := NewRequestID()

	assert.True(t, strings.HasPrefix(vm.String(), VMPrefix+"_"))
	assert.True(t, strings.HasPrefix(req.String(), RequestPrefix+"_"))
}

func TestTimestamp(t *testing.T) {
	g := NewGenerator()
	s := g.GenerateString()

	ts, err := Timestamp(s)
	require.NoError(t, err)
	assert.False(t, ts.IsZero())
}

func TestMonotonicOrdering(t *testing.T) {
	g := NewGenerator()

	ids := make([]string, 10)
	for i := range ids {
		ids[i] = g.GenerateString()
	}

	// ULIDs generated in sequence sort lexicographically by time.
	for i := 1; i < len(ids); i++ {
		assert.LessOrEqual(t, ids[i-1][:10], ids[i][:10])
	}
}
