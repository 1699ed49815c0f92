package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortedKeys(t *testing.T) {
	data, err := MarshalCanonical(Object{"b": Int(2), "a": Int(1)})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2}`, string(data))
}

func TestMarshalCanonical_NoHTMLEscape(t *testing.T) {
	data, err := MarshalCanonical(String("<a & b>"))
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, string(data))
}

func TestMarshalCanonical_NFC(t *testing.T) {
	data, err := MarshalCanonical(String("e\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(data))
}

func TestMarshalCanonical_Numbers(t *testing.T) {
	data, err := MarshalCanonical(Array{Int(-3), Float(0.5), Float(2), Bool(false), Null{}})
	require.NoError(t, err)
	assert.Equal(t, `[-3,0.5,2,false,null]`, string(data))
}

func TestMarshalCanonical_RejectsNonFinite(t *testing.T) {
	_, err := MarshalCanonical(Float(math.NaN()))
	assert.Error(t, err)

	_, err = MarshalCanonical(Float(math.Inf(1)))
	assert.Error(t, err)
}

func TestMarshalCanonical_PlainGoValues(t *testing.T) {
	data, err := MarshalCanonical(map[string]any{"list": []any{"x", 1}, "ok": true})
	require.NoError(t, err)
	assert.Equal(t, `{"list":["x",1],"ok":true}`, string(data))
}

func TestMarshalCanonical_Unsupported(t *testing.T) {
	_, err := MarshalCanonical(struct{}{})
	assert.Error(t, err)
}

func TestCommandListHash_Stable(t *testing.T) {
	cmds := []Command{
		{Opcode: OpShowMessage, Indent: 0, Params: Params{String("hi")}},
		{Opcode: OpEnd},
	}
	a := NewCommandList(1, "a", cmds)
	b := NewCommandList(2, "b", cmds)

	ha, err := a.Hash()
	require.NoError(t, err)
	hb, err := b.Hash()
	require.NoError(t, err)

	assert.Equal(t, ha, hb, "hash depends on commands only")
	assert.Len(t, ha, 64)

	c := NewCommandList(1, "a", []Command{{Opcode: OpShowMessage, Params: Params{String("bye")}}})
	hc, err := c.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, ha, hc)
}
