package factor

import "strconv"

// The calculation language is a short sequence of column assignments:
//
//	spread = close - sma(close, 20)
//	factor = spread / std(close, 20)
//
// Expressions support + - * / ^, unary minus, parentheses, numeric literals,
// column references, and calls to the allow-listed builtin functions. There is
// no control flow, so every program terminates in a bounded number of steps.

type node interface{ nodePos() int }

type numberNode struct {
	value float64
	line  int
}

type identNode struct {
	name string
	line int
}

type callNode struct {
	name string
	args []node
	line int
}

type unaryNode struct {
	operand node
	line    int
}

type binaryNode struct {
	op    tokenKind
	left  node
	right node
	line  int
}

func (n *numberNode) nodePos() int { return n.line }
func (n *identNode) nodePos() int  { return n.line }
func (n *callNode) nodePos() int   { return n.line }
func (n *unaryNode) nodePos() int  { return n.line }
func (n *binaryNode) nodePos() int { return n.line }

type assignment struct {
	target string
	expr   node
	line   int
}

type parser struct {
	tokens []token
	pos    int
}

func parse(src string) ([]assignment, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}

	var program []assignment
	for !p.at(tokenEOF) {
		if p.at(tokenNewline) {
			p.next()
			continue
		}
		stmt, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		program = append(program, stmt)
	}
	// An empty program is legal at this level; the evaluator reports the
	// missing factor column instead.
	return program, nil
}

func (p *parser) parseAssignment() (assignment, error) {
	target := p.peek()
	if target.kind != tokenIdent {
		return assignment{}, execErrorf("line %d: expected column assignment, got %s", target.line, target)
	}
	p.next()
	if !p.at(tokenAssign) {
		return assignment{}, execErrorf("line %d: expected '=' after %q", target.line, target.text)
	}
	p.next()

	expr, err := p.parseExpr()
	if err != nil {
		return assignment{}, err
	}
	end := p.peek()
	if end.kind != tokenNewline && end.kind != tokenEOF {
		return assignment{}, execErrorf("line %d: unexpected %s after expression", end.line, end)
	}
	if end.kind == tokenNewline {
		p.next()
	}
	return assignment{target: target.text, expr: expr, line: target.line}, nil
}

func (p *parser) parseExpr() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.at(tokenPlus) || p.at(tokenMinus) {
		op := p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op.kind, left: left, right: right, line: op.line}
	}
	return left, nil
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.at(tokenStar) || p.at(tokenSlash) {
		op := p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op.kind, left: left, right: right, line: op.line}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.at(tokenMinus) {
		op := p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{operand: operand, line: op.line}, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.at(tokenCaret) {
		op := p.next()
		// Right associative: a^b^c parses as a^(b^c).
		exp, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &binaryNode{op: tokenCaret, left: base, right: exp, line: op.line}, nil
	}
	return base, nil
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.peek()
	switch tok.kind {
	case tokenNumber:
		p.next()
		value, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, execErrorf("line %d: invalid number %q", tok.line, tok.text)
		}
		return &numberNode{value: value, line: tok.line}, nil
	case tokenIdent:
		p.next()
		if !p.at(tokenLParen) {
			return &identNode{name: tok.text, line: tok.line}, nil
		}
		p.next()
		var args []node
		if !p.at(tokenRParen) {
			for {
				arg, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if !p.at(tokenComma) {
					break
				}
				p.next()
			}
		}
		if !p.at(tokenRParen) {
			return nil, execErrorf("line %d: missing ')' in call to %s", tok.line, tok.text)
		}
		p.next()
		return &callNode{name: tok.text, args: args, line: tok.line}, nil
	case tokenLParen:
		p.next()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if !p.at(tokenRParen) {
			return nil, execErrorf("line %d: missing ')'", tok.line)
		}
		p.next()
		return expr, nil
	default:
		return nil, execErrorf("line %d: unexpected %s", tok.line, tok)
	}
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) at(kind tokenKind) bool { return p.tokens[p.pos].kind == kind }

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokenEOF {
		p.pos++
	}
	return tok
}
