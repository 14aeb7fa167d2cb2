package nanoql

import (
	"fmt"
)

// Parser parses NanoQL queries into an AST.
type Parser struct {
	lexer   *Lexer
	current Token
}

// Parse parses the input string and returns the AST root node.
// An empty input yields a nil node, which matches everything.
func Parse(input string) (Node, error) {
	if input == "" {
		return nil, nil
	}
	p := &Parser{lexer: NewLexer(input)}
	p.advance()
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.current.Type != TokenEOF {
		return nil, fmt.Errorf("unexpected token %q", p.current.Value)
	}
	return node, nil
}

func (p *Parser) advance() {
	p.current = p.lexer.NextToken()
}

// parseOr handles OR expressions (lowest precedence).
func (p *Parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.current.Type == TokenOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		if right == nil {
			return nil, fmt.Errorf("expected expression after OR")
		}
		left = BinaryExpr{Op: "OR", Left: left, Right: right}
	}

	return left, nil
}

// parseAnd handles AND expressions.
func (p *Parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}

	for p.current.Type == TokenAnd {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		if right == nil {
			return nil, fmt.Errorf("expected expression after AND")
		}
		left = BinaryExpr{Op: "AND", Left: left, Right: right}
	}

	return left, nil
}

// parseNot handles NOT expressions.
func (p *Parser) parseNot() (Node, error) {
	if p.current.Type == TokenNot {
		p.advance()
		expr, err := p.parseNot() // NOT is right-associative
		if err != nil {
			return nil, err
		}
		if expr == nil {
			return nil, fmt.Errorf("expected expression after NOT")
		}
		return NotExpr{Expr: expr}, nil
	}
	return p.parsePrimary()
}

// parsePrimary handles primary expressions: (expr), key:value, key==value,
// key!=value, key~value, "string".
func (p *Parser) parsePrimary() (Node, error) {
	switch p.current.Type {
	case TokenLParen:
		p.advance()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.current.Type != TokenRParen {
			return nil, fmt.Errorf("expected ')' but got %q", p.current.Value)
		}
		p.advance()
		return expr, nil

	case TokenString, TokenIdent:
		text := p.current.Value
		p.advance()

		if node, ok, err := p.parseOperator(text); ok || err != nil {
			return node, err
		}

		// Bare word or quoted text: full-text search
		return MatchExpr{Key: "", Value: text, Op: OpContains}, nil

	case TokenEOF:
		return nil, nil

	default:
		return nil, fmt.Errorf("unexpected token %q", p.current.Value)
	}
}

// parseOperator parses "<op> value" after key. ok is false when no operator
// follows, leaving the parser untouched.
func (p *Parser) parseOperator(key string) (Node, bool, error) {
	var op string
	switch p.current.Type {
	case TokenColon:
		op = OpEqual
	case TokenEq:
		op = OpExact
	case TokenNeq:
		op = OpNotEqual
	case TokenTilde:
		op = OpContains
	default:
		return nil, false, nil
	}
	p.advance()
	node, err := p.parseValue(key, op)
	return node, true, err
}

// parseValue parses the value part after the operator.
func (p *Parser) parseValue(key, op string) (Node, error) {
	var value string

	switch p.current.Type {
	case TokenString, TokenIdent:
		value = p.current.Value
		p.advance()
	default:
		return nil, fmt.Errorf("expected value after '%s%s' but got %q", key, op, p.current.Value)
	}

	return MatchExpr{Key: key, Value: value, Op: op}, nil
}
