package factor

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenNewline
	tokenIdent
	tokenNumber
	tokenAssign
	tokenPlus
	tokenMinus
	tokenStar
	tokenSlash
	tokenCaret
	tokenLParen
	tokenRParen
	tokenComma
)

type token struct {
	kind tokenKind
	text string
	line int
}

func (t token) String() string {
	switch t.kind {
	case tokenEOF:
		return "end of input"
	case tokenNewline:
		return "end of statement"
	default:
		return fmt.Sprintf("%q", t.text)
	}
}

// lex tokenizes calculation logic. Statements are separated by newlines or
// semicolons; '#' starts a comment running to end of line.
func lex(src string) ([]token, error) {
	var tokens []token
	line := 1

	emit := func(kind tokenKind, text string) {
		tokens = append(tokens, token{kind: kind, text: text, line: line})
	}

	runes := []rune(src)
	i := 0
	for i < len(runes) {
		c := runes[i]
		switch {
		case c == '\n' || c == ';':
			// Collapse consecutive separators into one statement break.
			if len(tokens) > 0 && tokens[len(tokens)-1].kind != tokenNewline {
				emit(tokenNewline, "\\n")
			}
			if c == '\n' {
				line++
			}
			i++
		case c == '#':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case unicode.IsLetter(c) || c == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			emit(tokenIdent, string(runes[start:i]))
		case unicode.IsDigit(c) || (c == '.' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			start := i
			seenDot := false
			for i < len(runes) {
				if unicode.IsDigit(runes[i]) {
					i++
					continue
				}
				if runes[i] == '.' && !seenDot {
					seenDot = true
					i++
					continue
				}
				break
			}
			emit(tokenNumber, string(runes[start:i]))
		default:
			kind, ok := operatorKind(c)
			if !ok {
				return nil, execErrorf("line %d: unexpected character %q", line, string(c))
			}
			emit(kind, string(c))
			i++
		}
	}

	if len(tokens) > 0 && tokens[len(tokens)-1].kind != tokenNewline {
		tokens = append(tokens, token{kind: tokenNewline, text: "\\n", line: line})
	}
	tokens = append(tokens, token{kind: tokenEOF, line: line})
	return tokens, nil
}

func operatorKind(c rune) (tokenKind, bool) {
	switch c {
	case '=':
		return tokenAssign, true
	case '+':
		return tokenPlus, true
	case '-':
		return tokenMinus, true
	case '*':
		return tokenStar, true
	case '/':
		return tokenSlash, true
	case '^':
		return tokenCaret, true
	case '(':
		return tokenLParen, true
	case ')':
		return tokenRParen, true
	case ',':
		return tokenComma, true
	}
	return tokenEOF, false
}

// sourceExcerpt trims logic for log output.
func sourceExcerpt(src string) string {
	src = strings.TrimSpace(src)
	if len(src) > 120 {
		return src[:120] + "..."
	}
	return src
}
