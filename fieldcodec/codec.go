// Package fieldcodec converts between text and the ledger's field elements.
//
// The ledger only stores fixed-width numeric types, so strings such as auction names and
// metadata URLs are packed into field elements: each field carries up to BytesPerField bytes
// in little-endian order, and consecutive fields concatenate into one string. A zero byte
// terminates the string.
package fieldcodec

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/cloudx-io/auctionview/ledgerapi/parsing"
)

// BytesPerField is the number of text bytes packed into one field element. 31 bytes keep
// every packed value below the field modulus.
const BytesPerField = 31

// Modulus is the order of the ledger's base field.
var Modulus, _ = new(big.Int).SetString(
	"8444461749428370424248824938781546531375899335154063827935233455917409239041", 10)

// ScalarModulus is the order of the ledger's scalar field.
var ScalarModulus, _ = new(big.Int).SetString(
	"2111115437357092606062206234695386632838870926408408195193685246394721360383", 10)

// DecodingError reports a field value that cannot be turned back into text.
type DecodingError struct {
	Input string
	Msg   string
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("decode field %q: %s", e.Input, e.Msg)
}

// EncodingError reports text that cannot be packed into the requested fields.
type EncodingError struct {
	Length   int
	Capacity int
	Msg      string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode %d bytes into %d-byte capacity: %s", e.Length, e.Capacity, e.Msg)
}

// DecodeFieldsToText concatenates the bytes packed into each field, in order. Decoding stops
// at the first zero byte. An empty slice decodes to the empty string.
func DecodeFieldsToText(fields []*big.Int) (string, error) {
	var sb strings.Builder
	for _, f := range fields {
		if err := checkRange(f); err != nil {
			return "", err
		}
		chunk, terminated := unpackField(f)
		sb.Write(chunk)
		if terminated {
			break
		}
	}
	return sb.String(), nil
}

// DecodeSingleFieldToText decodes a short string packed into one field.
func DecodeSingleFieldToText(field *big.Int) (string, error) {
	return DecodeFieldsToText([]*big.Int{field})
}

// EncodeTextToFields packs text into exactly slots fields, filling from the first slot and
// leaving unused slots at zero.
func EncodeTextToFields(text string, slots int) ([]*big.Int, error) {
	data := []byte(text)
	capacity := slots * BytesPerField
	if slots <= 0 {
		return nil, &EncodingError{Length: len(data), Capacity: 0, Msg: "slot count must be positive"}
	}
	if len(data) > capacity {
		return nil, &EncodingError{Length: len(data), Capacity: capacity, Msg: "text exceeds capacity"}
	}
	if strings.IndexByte(text, 0) >= 0 {
		return nil, &EncodingError{Length: len(data), Capacity: capacity, Msg: "text contains a NUL byte"}
	}

	fields := make([]*big.Int, slots)
	for i := range fields {
		start := i * BytesPerField
		end := min(start+BytesPerField, len(data))
		if start >= len(data) {
			fields[i] = new(big.Int)
			continue
		}
		fields[i] = packField(data[start:end])
	}
	return fields, nil
}

// EncodeSingleField packs a short string into one field.
func EncodeSingleField(text string) (*big.Int, error) {
	fields, err := EncodeTextToFields(text, 1)
	if err != nil {
		return nil, err
	}
	return fields[0], nil
}

// ParseField parses a field literal: "123", "123field" or "123field.private".
func ParseField(literal string) (*big.Int, error) {
	s := parsing.StripVisibility(strings.TrimSpace(literal))
	s = strings.TrimSuffix(s, "field")
	if s == "" {
		return nil, &DecodingError{Input: literal, Msg: "empty field literal"}
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return nil, &DecodingError{Input: literal, Msg: "not a decimal field literal"}
		}
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, &DecodingError{Input: literal, Msg: "not a decimal field literal"}
	}
	if err := checkRange(v); err != nil {
		return nil, &DecodingError{Input: literal, Msg: "value exceeds field modulus"}
	}
	return v, nil
}

// ParseFields parses every literal in order.
func ParseFields(literals []string) ([]*big.Int, error) {
	out := make([]*big.Int, len(literals))
	for i, lit := range literals {
		f, err := ParseField(lit)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}

// DecodeLiteralsToText parses field literals and decodes them as one string.
func DecodeLiteralsToText(literals []string) (string, error) {
	fields, err := ParseFields(literals)
	if err != nil {
		return "", err
	}
	return DecodeFieldsToText(fields)
}

// FormatField renders a field as a ledger literal, e.g. "123field".
func FormatField(f *big.Int) string {
	return f.String() + "field"
}

// FormatFieldArray renders fields as a ledger array literal, e.g. "[1field, 2field]".
func FormatFieldArray(fields []*big.Int) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = FormatField(f)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// EncodeTextToLiterals packs text into slots fields rendered as ledger literals.
func EncodeTextToLiterals(text string, slots int) ([]string, error) {
	fields, err := EncodeTextToFields(text, slots)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = FormatField(f)
	}
	return out, nil
}

func checkRange(f *big.Int) error {
	if f == nil {
		return &DecodingError{Input: "<nil>", Msg: "missing field value"}
	}
	if f.Sign() < 0 {
		return &DecodingError{Input: f.String(), Msg: "negative field value"}
	}
	if f.Cmp(Modulus) >= 0 {
		return &DecodingError{Input: f.String(), Msg: "value exceeds field modulus"}
	}
	return nil
}

// packField stores b[0] in the lowest byte.
func packField(b []byte) *big.Int {
	be := make([]byte, len(b))
	for i := range b {
		be[len(b)-1-i] = b[i]
	}
	return new(big.Int).SetBytes(be)
}

// unpackField returns the packed bytes and whether a terminator was found inside them.
// High zero bytes are absent from the big-endian form, so a short value is not terminated.
func unpackField(f *big.Int) ([]byte, bool) {
	be := f.Bytes()
	out := make([]byte, 0, len(be))
	for i := len(be) - 1; i >= 0; i-- {
		if be[i] == 0 {
			return out, true
		}
		out = append(out, be[i])
	}
	return out, f.Sign() == 0
}
