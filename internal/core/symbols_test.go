package core

import (
	"testing"

	"boilw/internal/types"

	"github.com/stretchr/testify/assert"
)

func TestDefineInternsOnce(t *testing.T) {
	k := NewKernel()

	a := k.Define("Apple")
	assert.Equal(t, types.FlagID(1), a)
	assert.Equal(t, a, k.Define("Apple"))

	b := k.Define("Banana")
	assert.Equal(t, types.FlagID(2), b)
}

func TestLabelUnknownID(t *testing.T) {
	k := NewKernel()
	assert.Equal(t, "?99", k.Label(types.FlagID(99)))
}

func TestLookupDoesNotIntern(t *testing.T) {
	k := NewKernel()

	_, ok := k.Lookup("Ghost")
	assert.False(t, ok)
	assert.Equal(t, 0, k.GetStats().Flags)
}

func TestFlagsSortedWithDescriptions(t *testing.T) {
	k := NewKernel()
	k.DefineFlag("Knife", "a sharp tool")
	k.Define("Apple")

	flags := k.Flags()
	assert.Equal(t, []types.Flag{
		{ID: 1, Label: "Knife", Description: "a sharp tool"},
		{ID: 2, Label: "Apple"},
	}, flags)
}
