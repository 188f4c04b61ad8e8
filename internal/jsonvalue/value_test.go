package jsonvalue_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxromumarov/tabscrape/internal/jsonvalue"
)

func TestDecode_Kinds(t *testing.T) {
	v, err := jsonvalue.Decode([]byte(`{
		"name": "bulbasaur",
		"height": 7,
		"big": 12345678901234567890,
		"legendary": false,
		"evolves_from": null,
		"types": ["grass", "poison"],
		"stats": {"hp": 45, "attack": 49},
		"note": "tab\tand \"quotes\" é"
	}`))
	require.NoError(t, err)
	require.Equal(t, jsonvalue.Object, v.Kind())
	assert.Equal(t, []string{"name", "height", "big", "legendary", "evolves_from", "types", "stats", "note"}, v.Keys())

	name, _ := v.Get("name")
	s, ok := name.Str()
	require.True(t, ok)
	assert.Equal(t, "bulbasaur", s)

	height, _ := v.Get("height")
	n, ok := height.Int64()
	require.True(t, ok)
	assert.EqualValues(t, 7, n)

	big, _ := v.Get("big")
	lit, ok := big.Number()
	require.True(t, ok)
	assert.Equal(t, "12345678901234567890", lit)

	legendary, _ := v.Get("legendary")
	b, ok := legendary.Bool()
	require.True(t, ok)
	assert.False(t, b)

	evolves, _ := v.Get("evolves_from")
	assert.True(t, evolves.IsNull())

	types, _ := v.Get("types")
	assert.Equal(t, 2, types.Len())
	second, ok := types.Index(1)
	require.True(t, ok)
	assert.Equal(t, "poison", second.Text())

	note, _ := v.Get("note")
	assert.Equal(t, "tab\tand \"quotes\" é", note.Text())
}

func TestDecode_EmptyContainers(t *testing.T) {
	v, err := jsonvalue.Decode([]byte(`{"a": [], "b": {}, "c": [ ]}`))
	require.NoError(t, err)
	for _, k := range []string{"a", "b", "c"} {
		m, ok := v.Get(k)
		require.True(t, ok, k)
		assert.Zero(t, m.Len(), k)
	}
}

func TestDecode_Scalars(t *testing.T) {
	v, err := jsonvalue.Decode([]byte(` 42 `))
	require.NoError(t, err)
	assert.Equal(t, jsonvalue.Number, v.Kind())

	v, err = jsonvalue.Decode([]byte(`"x"`))
	require.NoError(t, err)
	assert.Equal(t, "x", v.Text())
}

func TestDecode_SyntaxError(t *testing.T) {
	for _, in := range []string{`{"a":`, `{"a":1} trailing`, `[1,]`, ``, `{'a':1}`} {
		_, err := jsonvalue.Decode([]byte(in))
		var syn *json.SyntaxError
		assert.ErrorAs(t, err, &syn, in)
	}
}

func TestDecodeLenient(t *testing.T) {
	v, err := jsonvalue.DecodeLenient([]byte(`{
		// comment
		name: 'bulbasaur',
		height: 7,
		types: ["grass",],
	}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"height", "name", "types"}, v.Keys())
	h, _ := v.Get("height")
	n, ok := h.Int64()
	require.True(t, ok)
	assert.EqualValues(t, 7, n)
}

func TestValue_MarshalRoundTrip(t *testing.T) {
	in := `{"b":1,"a":[true,null,"x",{"z":2.5}]}`
	v, err := jsonvalue.Decode([]byte(in))
	require.NoError(t, err)
	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, in, string(out))
	assert.Equal(t, `[true,null,"x",{"z":2.5}]`, mustGet(t, v, "a").Text())
}

func TestValue_Equal(t *testing.T) {
	a := jsonvalue.ObjectValue(
		jsonvalue.Member{Key: "x", Value: jsonvalue.NumberValue("1.0")},
		jsonvalue.Member{Key: "y", Value: jsonvalue.ArrayValue(jsonvalue.StringValue("s"))},
	)
	b := jsonvalue.ObjectValue(
		jsonvalue.Member{Key: "y", Value: jsonvalue.ArrayValue(jsonvalue.StringValue("s"))},
		jsonvalue.Member{Key: "x", Value: jsonvalue.IntValue(1)},
	)
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(jsonvalue.NullValue()))
}

func TestObjectValue_DuplicateKeys(t *testing.T) {
	v := jsonvalue.ObjectValue(
		jsonvalue.Member{Key: "a", Value: jsonvalue.IntValue(1)},
		jsonvalue.Member{Key: "b", Value: jsonvalue.IntValue(2)},
		jsonvalue.Member{Key: "a", Value: jsonvalue.IntValue(3)},
	)
	assert.Equal(t, []string{"a", "b"}, v.Keys())
	assert.Equal(t, "3", mustGet(t, v, "a").Text())
}

func mustGet(t *testing.T, v jsonvalue.Value, key string) jsonvalue.Value {
	t.Helper()
	m, ok := v.Get(key)
	require.True(t, ok, key)
	return m
}
