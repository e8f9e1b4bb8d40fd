// Package parser builds a schema AST from the lexer's token stream using
// recursive descent with single-token lookahead.
package parser

import (
	"github.com/schemact/schemact/internal/fault"
	"github.com/schemact/schemact/internal/lexer"
)

type parser struct {
	tokens []lexer.Token
	pos    int
}

// Parse lexes source and parses the resulting tokens into a Schema.
func Parse(source string) (*Schema, error) {
	tokens, err := lexer.Tokenize(source)
	if err != nil {
		return nil, err
	}

	return ParseTokens(tokens)
}

// ParseTokens parses an already-lexed token stream into a Schema.
func ParseTokens(tokens []lexer.Token) (*Schema, error) {
	p := &parser{tokens: tokens}

	schema := &Schema{}

	for {
		tok := p.peek()

		switch tok.Kind {
		case lexer.TokenEOF:
			return schema, nil
		case lexer.TokenModel:
			model, err := p.parseModel()
			if err != nil {
				return nil, err
			}

			schema.Models = append(schema.Models, *model)
		case lexer.TokenRawSQL:
			p.next()
			schema.RawSQL = append(schema.RawSQL, RawSQL{SQL: tok.Value, Line: tok.Line})
		default:
			return nil, fault.ParseAt(tok.Line, tok.Column,
				"unexpected token %s %q", tok.Kind, tok.Value)
		}
	}
}

func (p *parser) peek() lexer.Token { return p.tokens[p.pos] }

func (p *parser) next() lexer.Token {
	tok := p.tokens[p.pos]
	if tok.Kind != lexer.TokenEOF {
		p.pos++
	}

	return tok
}

// expect consumes the next token, failing unless it has the wanted kind.
func (p *parser) expect(kind lexer.TokenKind) (lexer.Token, error) {
	tok := p.next()
	if tok.Kind != kind {
		return tok, fault.ParseAt(tok.Line, tok.Column,
			"expected %s, found %s %q", kind, tok.Kind, tok.Value)
	}

	return tok, nil
}

// parseModel parses: "model" IDENT "{" column+ "}".
func (p *parser) parseModel() (*Model, error) {
	p.next() // "model" keyword

	name, err := p.expect(lexer.TokenIdent)
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.TokenLBrace); err != nil {
		return nil, err
	}

	model := &Model{Name: name.Value, Line: name.Line, Column: name.Column}

	for p.peek().Kind == lexer.TokenIdent {
		col, err := p.parseColumn()
		if err != nil {
			return nil, err
		}

		model.Columns = append(model.Columns, *col)
	}

	if _, err := p.expect(lexer.TokenRBrace); err != nil {
		return nil, err
	}

	if len(model.Columns) == 0 {
		return nil, fault.ParseAt(name.Line, name.Column,
			"model %q must have at least one column", name.Value)
	}

	return model, nil
}

// parseColumn parses: IDENT TYPE type_args? decorator*.
func (p *parser) parseColumn() (*Column, error) {
	name := p.next() // IDENT, guaranteed by the caller's lookahead

	typ, err := p.expect(lexer.TokenType)
	if err != nil {
		return nil, err
	}

	col := &Column{Name: name.Value, Type: typ.Value, Line: name.Line, Col: name.Column}

	if p.peek().Kind == lexer.TokenLParen {
		args, err := p.parseArgList()
		if err != nil {
			return nil, err
		}

		col.TypeArgs = args
	}

	for p.peek().Kind == lexer.TokenDecorator {
		dec, err := p.parseDecorator()
		if err != nil {
			return nil, err
		}

		for i := range col.Decorators {
			if col.Decorators[i].Name == dec.Name {
				return nil, fault.ParseAt(dec.Line, dec.Col,
					"duplicate decorator @%s on column %q", dec.Name, col.Name)
			}
		}

		col.Decorators = append(col.Decorators, *dec)
	}

	return col, nil
}

// parseDecorator parses: "@" NAME decorator_args?.
func (p *parser) parseDecorator() (*Decorator, error) {
	tok := p.next() // TokenDecorator

	dec := &Decorator{Name: tok.Value, Line: tok.Line, Col: tok.Column}

	if p.peek().Kind == lexer.TokenLParen {
		args, err := p.parseArgList()
		if err != nil {
			return nil, err
		}

		dec.Args = args
	}

	return dec, nil
}

// parseArgList parses a parenthesized, comma-separated argument list. An
// empty list "()" yields an empty (non-nil) slice, meaning "no arguments
// supplied" to downstream default handling.
func (p *parser) parseArgList() ([]string, error) {
	p.next() // "("

	args := []string{}

	if p.peek().Kind == lexer.TokenRParen {
		p.next()

		return args, nil
	}

	for {
		arg, err := p.parseArg()
		if err != nil {
			return nil, err
		}

		args = append(args, arg)

		sep := p.next()

		switch sep.Kind {
		case lexer.TokenComma:
			continue
		case lexer.TokenRParen:
			return args, nil
		default:
			return nil, fault.ParseAt(sep.Line, sep.Column,
				"expected ',' or ')', found %s %q", sep.Kind, sep.Value)
		}
	}
}

// parseArg parses: STRING | NUMBER | IDENT ("." IDENT)?. Type names are
// accepted in identifier position so enum values may shadow them.
func (p *parser) parseArg() (string, error) {
	tok := p.next()

	switch tok.Kind {
	case lexer.TokenString, lexer.TokenNumber:
		return tok.Value, nil
	case lexer.TokenIdent, lexer.TokenType:
		if p.peek().Kind != lexer.TokenDot {
			return tok.Value, nil
		}

		p.next() // "."

		field, err := p.expect(lexer.TokenIdent)
		if err != nil {
			return "", err
		}

		return tok.Value + "." + field.Value, nil
	default:
		return "", fault.ParseAt(tok.Line, tok.Column,
			"expected argument, found %s %q", tok.Kind, tok.Value)
	}
}
