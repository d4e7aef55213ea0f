//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

package template

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Eval evaluates a single expression against the namespace.
//
// Grammar (lowest precedence first):
//
//	expr    := and { "or" and }
//	and     := not { "and" not }
//	not     := "not" not | cmp
//	cmp     := primary [ ("==" | "!=") primary ]
//	primary := "(" expr ")" | STRING | NUMBER | "true" | "false" | path
//	path    := IDENT { "." IDENT }
func Eval(expr string, ns map[string]any) (any, error) {
	tokens, err := lex(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens, ns: ns}
	value, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, fmt.Errorf("unexpected token %q in expression %q", p.peek().text, expr)
	}
	return value, nil
}

type tokenKind int

const (
	tokenIdent tokenKind = iota
	tokenString
	tokenNumber
	tokenEq
	tokenNeq
	tokenLParen
	tokenRParen
	tokenDot
)

type token struct {
	kind tokenKind
	text string
}

func lex(input string) ([]token, error) {
	var tokens []token
	runes := []rune(input)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, token{tokenLParen, "("})
			i++
		case r == ')':
			tokens = append(tokens, token{tokenRParen, ")"})
			i++
		case r == '.':
			tokens = append(tokens, token{tokenDot, "."})
			i++
		case r == '=':
			if i+1 < len(runes) && runes[i+1] == '=' {
				tokens = append(tokens, token{tokenEq, "=="})
				i += 2
			} else {
				return nil, fmt.Errorf("unexpected character %q at offset %d", r, i)
			}
		case r == '!':
			if i+1 < len(runes) && runes[i+1] == '=' {
				tokens = append(tokens, token{tokenNeq, "!="})
				i += 2
			} else {
				return nil, fmt.Errorf("unexpected character %q at offset %d", r, i)
			}
		case r == '\'' || r == '"':
			quote := r
			j := i + 1
			for j < len(runes) && runes[j] != quote {
				j++
			}
			if j >= len(runes) {
				return nil, fmt.Errorf("unterminated string at offset %d", i)
			}
			tokens = append(tokens, token{tokenString, string(runes[i+1 : j])})
			i = j + 1
		case unicode.IsDigit(r) || (r == '-' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			j := i + 1
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			tokens = append(tokens, token{tokenNumber, string(runes[i:j])})
			i = j
		case unicode.IsLetter(r) || r == '_':
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			tokens = append(tokens, token{tokenIdent, string(runes[i:j])})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", r, i)
		}
	}
	return tokens, nil
}

type parser struct {
	tokens []token
	pos    int
	ns     map[string]any
}

func (p *parser) atEnd() bool { return p.pos >= len(p.tokens) }

func (p *parser) peek() token {
	if p.atEnd() {
		return token{}
	}
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) matchIdent(word string) bool {
	if !p.atEnd() && p.tokens[p.pos].kind == tokenIdent && p.tokens[p.pos].text == word {
		p.pos++
		return true
	}
	return false
}

func (p *parser) parseOr() (any, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.matchIdent("or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = truthy(left) || truthy(right)
	}
	return left, nil
}

func (p *parser) parseAnd() (any, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.matchIdent("and") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = truthy(left) && truthy(right)
	}
	return left, nil
}

func (p *parser) parseNot() (any, error) {
	if p.matchIdent("not") {
		value, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return !truthy(value), nil
	}
	return p.parseCmp()
}

func (p *parser) parseCmp() (any, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.atEnd() {
		return left, nil
	}
	switch p.peek().kind {
	case tokenEq:
		p.next()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return valuesEqual(left, right), nil
	case tokenNeq:
		p.next()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return !valuesEqual(left, right), nil
	}
	return left, nil
}

func (p *parser) parsePrimary() (any, error) {
	if p.atEnd() {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	t := p.next()
	switch t.kind {
	case tokenLParen:
		value, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.atEnd() || p.next().kind != tokenRParen {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		return value, nil
	case tokenString:
		return t.text, nil
	case tokenNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", t.text, err)
		}
		return f, nil
	case tokenIdent:
		switch t.text {
		case "true", "True":
			return true, nil
		case "false", "False":
			return false, nil
		case "and", "or", "not":
			return nil, fmt.Errorf("unexpected keyword %q", t.text)
		}
		// Dotted identifier path into the namespace.
		path := t.text
		for !p.atEnd() && p.peek().kind == tokenDot {
			p.next()
			part := p.next()
			if part.kind != tokenIdent {
				return nil, fmt.Errorf("expected identifier after '.' in path %q", path)
			}
			path += "." + part.text
		}
		return resolvePath(p.ns, path), nil
	default:
		return nil, fmt.Errorf("unexpected token %q", t.text)
	}
}

// valuesEqual compares two expression values, coercing numerics so that
// template-expanded strings compare equal to their numeric origins.
func valuesEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return stringify(a) == stringify(b)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	case string:
		trimmed := strings.TrimSpace(t)
		if trimmed == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
