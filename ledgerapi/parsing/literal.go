package parsing

import (
	"fmt"
)

// ParseError reports a malformed ledger literal.
type ParseError struct {
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse ledger literal at offset %d: %s", e.Offset, e.Msg)
}

// ParseLedgerLiteral parses a ledger struct literal such as
//
//	{ owner: aleo1xyz.private, amount: 25000u64.private, data: [1field, 2field] }
//
// into a plain map. Keys are bare identifiers. Scalars (numbers with type suffixes, addresses,
// booleans, identifiers) are kept verbatim as strings, so callers decide how to strip
// visibility and type annotations. Nested structs become map[string]any and arrays become
// []any, to any depth.
//
// This is a best-effort grammar that covers what auction records and mappings carry; it does
// not validate types, and string literals with quotes are not part of it.
func ParseLedgerLiteral(text string) (map[string]any, error) {
	v, err := ParseLedgerValue(text)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &ParseError{Offset: 0, Msg: "top-level value is not a struct"}
	}
	return m, nil
}

// ParseLedgerValue parses any ledger value: a struct, an array or a bare scalar like "5000u64".
func ParseLedgerValue(text string) (any, error) {
	p := &parser{lex: newLexer(text)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	v, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, p.errorf("unexpected %s after value", p.tok)
	}
	return v, nil
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokLBrace
	tokRBrace
	tokLBracket
	tokRBracket
	tokColon
	tokComma
	tokScalar
)

type token struct {
	kind   tokenKind
	text   string
	offset int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokScalar:
		return fmt.Sprintf("%q", t.text)
	default:
		return fmt.Sprintf("'%s'", t.text)
	}
}

var punctuation = map[byte]tokenKind{
	'{': tokLBrace, '}': tokRBrace,
	'[': tokLBracket, ']': tokRBracket,
	':': tokColon, ',': tokComma,
}

type lexer struct {
	src string
	pos int
}

func newLexer(src string) *lexer {
	return &lexer{src: src}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isScalarByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_' || c == '.' || c == '-':
		return true
	}
	return false
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, offset: l.pos}, nil
	}

	start := l.pos
	c := l.src[l.pos]
	if kind, ok := punctuation[c]; ok {
		l.pos++
		return token{kind: kind, text: string(c), offset: start}, nil
	}
	if !isScalarByte(c) {
		return token{}, &ParseError{Offset: start, Msg: fmt.Sprintf("unexpected character %q", c)}
	}
	for l.pos < len(l.src) && isScalarByte(l.src[l.pos]) {
		l.pos++
	}
	return token{kind: tokScalar, text: l.src[start:l.pos], offset: start}, nil
}

type parser struct {
	lex *lexer
	tok token
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Offset: p.tok.offset, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(kind tokenKind, what string) error {
	if p.tok.kind != kind {
		return p.errorf("expected %s, got %s", what, p.tok)
	}
	return p.advance()
}

func (p *parser) parseValue() (any, error) {
	switch p.tok.kind {
	case tokLBrace:
		return p.parseStruct()
	case tokLBracket:
		return p.parseArray()
	case tokScalar:
		text := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return text, nil
	default:
		return nil, p.errorf("expected value, got %s", p.tok)
	}
}

func (p *parser) parseStruct() (map[string]any, error) {
	if err := p.expect(tokLBrace, "'{'"); err != nil {
		return nil, err
	}
	out := make(map[string]any)
	for p.tok.kind != tokRBrace {
		if p.tok.kind != tokScalar || !isIdentifier(p.tok.text) {
			return nil, p.errorf("expected field name, got %s", p.tok)
		}
		key := p.tok.text
		if _, dup := out[key]; dup {
			return nil, p.errorf("duplicate field %q", key)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expect(tokColon, "':'"); err != nil {
			return nil, err
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		out[key] = v

		if p.tok.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		if p.tok.kind != tokRBrace {
			return nil, p.errorf("expected ',' or '}', got %s", p.tok)
		}
	}
	return out, p.advance()
}

func (p *parser) parseArray() ([]any, error) {
	if err := p.expect(tokLBracket, "'['"); err != nil {
		return nil, err
	}
	out := make([]any, 0)
	for p.tok.kind != tokRBracket {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		out = append(out, v)

		if p.tok.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		if p.tok.kind != tokRBracket {
			return nil, p.errorf("expected ',' or ']', got %s", p.tok)
		}
	}
	return out, p.advance()
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	if !(c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if !(c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}
