package stringpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Intern(t *testing.T) {
	p := New()

	a := p.Intern([]byte("swapper"))
	b := p.Intern([]byte("kworker/0:1"))
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, p.Len())

	// Equal bytes intern to the same handle.
	again := p.Intern([]byte("swapper"))
	assert.Equal(t, a, again)
	assert.Equal(t, 2, p.Len())

	s, ok := p.Get(a)
	require.True(t, ok)
	assert.Equal(t, "swapper", s)
}

func TestPool_InternCopies(t *testing.T) {
	p := New()
	buf := []byte("comm")
	id := p.Intern(buf)
	buf[0] = 'X'

	s, ok := p.Get(id)
	require.True(t, ok)
	assert.Equal(t, "comm", s)
}

func TestPool_GetUnknown(t *testing.T) {
	p := New()
	_, ok := p.Get(ID(7))
	assert.False(t, ok)
}
