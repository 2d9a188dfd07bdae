package ref

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCanonicalRoundTrip(t *testing.T) {
	tests := []string{
		"foo",
		"kernel.sub",
		"kernel.sub[3][2].port",
		"a[0]",
		"model.dt",
	}
	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			r, err := Parse(s)
			require.NoError(t, err)
			assert.Equal(t, s, r.String())

			r2, err := Parse(r.String())
			require.NoError(t, err)
			assert.True(t, r.Equal(r2))
		})
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	tests := []string{
		"",
		".foo",
		"foo.",
		"foo..bar",
		"1foo",
		"foo[",
		"foo[-1]",
		"foo[01]",
		"foo bar",
	}
	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			_, err := Parse(s)
			assert.Error(t, err)
		})
	}
}

func TestConcatAndPrefix(t *testing.T) {
	a := MustParse("kernel.sub")
	b := MustParse("port")
	c := a.Concat(b)
	assert.Equal(t, "kernel.sub.port", c.String())
	assert.Equal(t, "kernel.sub", c.Prefix(2).String())
	assert.Equal(t, "kernel", c.Prefix(1).String())
	assert.True(t, c.Prefix(0).IsEmpty())
}

func TestWithIndexAndAsIndex(t *testing.T) {
	k := MustParse("kernel")
	withIdx := k.WithIndex([]int{3, 2})
	assert.Equal(t, "kernel[3][2]", withIdx.String())

	pureIdx := FromIndex([]int{1, 4})
	vals, err := pureIdx.AsIndex()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4}, vals)

	_, err = k.AsIndex()
	assert.Error(t, err)
}

func TestEquality(t *testing.T) {
	a := MustParse("kernel.sub[1].port")
	b := MustParse("kernel.sub[1].port")
	c := MustParse("kernel.sub[2].port")
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestLastAndDropLast(t *testing.T) {
	r := MustParse("kernel.sub.port")
	assert.Equal(t, "port", r.Last().String())
	assert.Equal(t, "kernel.sub", r.DropLast().String())
}

func TestIsIdentifier(t *testing.T) {
	assert.True(t, MustParse("port").IsIdentifier())
	assert.False(t, MustParse("kernel.port").IsIdentifier())
	assert.False(t, MustParse("a[0]").IsIdentifier())
}
