package parsing

import (
	"errors"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestStripVisibilityTags_Recursive(t *testing.T) {
	input := map[string]any{
		"owner": "aleo1abc.private",
		"bid": map[string]any{
			"amount":     "5000u64.private",
			"auction_id": "77field.public",
		},
		"offchain_data": []any{"1field.private", "2field.private"},
		"names":         []string{"3field.public"},
		"labels":        map[string]string{"k": "v.private"},
		"count":         float64(3),
		"flag":          true,
		"nothing":       nil,
	}

	out := StripVisibilityTags(input).(map[string]any)

	check.Equal(t, "aleo1abc", out["owner"])
	check.Equal(t, "5000u64", out["bid"].(map[string]any)["amount"])
	check.Equal(t, "77field", out["bid"].(map[string]any)["auction_id"])
	check.Equal[any](t, []any{"1field", "2field"}, out["offchain_data"])
	check.Equal[any](t, []string{"3field"}, out["names"])
	check.Equal[any](t, map[string]string{"k": "v"}, out["labels"])
	check.Equal[any](t, float64(3), out["count"])
	check.Equal(t, true, out["flag"])
	check.Nil(t, out["nothing"])

	// Input is left untouched
	check.Equal(t, "aleo1abc.private", input["owner"])
}

func TestStripTypeSuffix(t *testing.T) {
	tests := []struct {
		in    string
		value string
		typ   string
	}{
		{"25000u64", "25000", "u64"},
		{"25000u64.private", "25000", "u64"},
		{"12u128", "12", "u128"},
		{"3u8", "3", "u8"},
		{"-4i32", "-4", "i32"},
		{"99field", "99", "field"},
		{"2group", "2", "group"},
		{"aleo1qqq", "aleo1qqq", ""},
		{"true.public", "true", ""},
		{"field", "field", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			value, typ := StripTypeSuffix(tt.in)
			check.Equal(t, tt.value, value)
			check.Equal(t, tt.typ, typ)
		})
	}
}

func TestParseLedgerLiteral_Struct(t *testing.T) {
	text := `{
  name: 1937076844field,
  item_id: 55field,
  offchain_data: [
    1field,
    2field,
    3field,
    4field
  ],
  starting_bid: 25000u64,
  private: false
}`
	out, err := ParseLedgerLiteral(text)
	assert.NoError(t, err)

	check.Equal(t, "1937076844field", out["name"])
	check.Equal(t, "55field", out["item_id"])
	check.Equal[any](t, []any{"1field", "2field", "3field", "4field"}, out["offchain_data"])
	check.Equal(t, "25000u64", out["starting_bid"])
	check.Equal(t, "false", out["private"])
}

func TestParseLedgerLiteral_NestedArraysOfStructs(t *testing.T) {
	text := `{ bids: [ { amount: 1u64.private, ids: [1field, [2field, 3field]] }, { amount: 2u64.private, ids: [] } ], owner: aleo1xyz.private, }`
	out, err := ParseLedgerLiteral(text)
	assert.NoError(t, err)

	bids := out["bids"].([]any)
	check.Equal(t, 2, len(bids))
	first := bids[0].(map[string]any)
	check.Equal(t, "1u64.private", first["amount"])
	check.Equal[any](t, []any{"1field", []any{"2field", "3field"}}, first["ids"])
	check.Equal[any](t, []any{}, bids[1].(map[string]any)["ids"])
	check.Equal(t, "aleo1xyz.private", out["owner"])
}

func TestParseLedgerValue_Scalar(t *testing.T) {
	v, err := ParseLedgerValue("  5000u64 ")
	assert.NoError(t, err)
	check.Equal(t, "5000u64", v)
}

func TestParseLedgerLiteral_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"scalar at top level", "5u64"},
		{"unterminated struct", "{ a: 1u64"},
		{"missing colon", "{ a 1u64 }"},
		{"missing comma", "{ a: 1u64 b: 2u64 }"},
		{"numeric key", "{ 1a: 1u64 }"},
		{"duplicate key", "{ a: 1u64, a: 2u64 }"},
		{"bad character", `{ a: "quoted" }`},
		{"trailing garbage", "{ a: 1u64 } }"},
		{"unterminated array", "{ a: [1field, 2field }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLedgerLiteral(tt.text)
			check.Error(t, err)
			var perr *ParseError
			check.True(t, errors.As(err, &perr))
		})
	}
}

func TestAccessors(t *testing.T) {
	data, err := ParseLedgerLiteral(`{ bid: { amount: 2000u64.private, auction_id: 9field.private }, winner: true.private }`)
	assert.NoError(t, err)

	amountRaw, ok := Lookup(data, "bid", "amount")
	check.True(t, ok)
	amount, err := Uint64(amountRaw)
	check.NoError(t, err)
	check.Equal(t, uint64(2000), amount)

	idRaw, ok := Lookup(data, "bid", "auction_id")
	check.True(t, ok)
	id, err := String(idRaw)
	check.NoError(t, err)
	check.Equal(t, "9field", id)

	winner, err := Bool(data["winner"])
	check.NoError(t, err)
	check.True(t, winner)

	_, ok = Lookup(data, "bid", "missing")
	check.False(t, ok)
	_, ok = Lookup(data, "winner", "nested")
	check.False(t, ok)

	_, err = Uint64("12field")
	check.Error(t, err)
	_, err = Uint64(float64(-1))
	check.Error(t, err)
	_, err = Uint64(float64(1 << 64))
	check.Error(t, err)
	_, err = Uint64(1.5)
	check.Error(t, err)
	n, err := Uint64(float64(42))
	check.NoError(t, err)
	check.Equal(t, uint64(42), n)
}

func TestStringSlice(t *testing.T) {
	got, err := StringSlice([]any{"1field.private", "2field.private"})
	check.NoError(t, err)
	check.Equal(t, []string{"1field", "2field"}, got)

	got, err = StringSlice("7field.private")
	check.NoError(t, err)
	check.Equal(t, []string{"7field"}, got)

	got, err = StringSlice("[1field, 2field]")
	check.NoError(t, err)
	check.Equal(t, []string{"1field", "2field"}, got)

	_, err = StringSlice([]any{map[string]any{}})
	check.Error(t, err)
}

func TestField(t *testing.T) {
	tests := []struct {
		input    any
		expected string
		wantErr  bool
	}{
		{"123field", "123field", false},
		{"123field.private", "123field", false},
		{"123", "123field", false},
		{"123u64", "", true},
		{"aleo1abc", "", true},
		{42.0, "", true},
	}

	for _, tt := range tests {
		got, err := Field(tt.input)
		if tt.wantErr {
			check.Error(t, err)
			continue
		}
		check.NoError(t, err)
		check.Equal(t, tt.expected, got)
	}
}
