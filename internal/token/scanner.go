package token

import (
	"github.com/pkg/errors"

	"github.com/kboyd-dev/ployvm/internal/ployerr"
)

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\n'
}

func isDelimiter(c byte) bool {
	return isWhitespace(c) || c == '(' || c == ')' || c == '"' || c == ';'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isNumeric(c byte) bool {
	return isDigit(c) || c == '.'
}

func isSpecialInitial(c byte) bool {
	switch c {
	case '!', '$', '%', '&', '*', '/', ':', '<', '=', '>', '?', '^', '_', '~':
		return true
	}
	return false
}

func isIdentifierInitial(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || isSpecialInitial(c)
}

func isIdentifierSubsequent(c byte) bool {
	return isIdentifierInitial(c) || isDigit(c) || c == '+' || c == '-' || c == '.' || c == '@'
}

// Scanner turns Scheme source text into a Token stream, tracking
// expression-sequence boundaries so it can mark the first token of the last
// expression in every sequence with IsFinal.
type Scanner struct {
	src    string
	pos    int
	tokens []Token

	// expressionSequences is a stack of frames; each frame lists the token
	// index of every expression registered in it so far. Entering '(' pushes
	// a frame, leaving ')' pops it and marks its last entry final.
	expressionSequences [][]int
}

// Scan lexes src in full and returns its token stream, always terminated by
// a single EOF token. Any failure is reported as a *ployerr.Error tagged
// ployerr.LexError.
func Scan(src string) ([]Token, error) {
	toks, err := scan(src)
	if err != nil {
		return nil, ployerr.Wrap(ployerr.LexError, err, "scanning")
	}
	return toks, nil
}

func scan(src string) ([]Token, error) {
	s := &Scanner{src: src}
	s.expressionSequences = append(s.expressionSequences, nil)

	for s.pos < len(s.src) {
		c := s.src[s.pos]

		if isWhitespace(c) {
			s.pos++
			continue
		}

		var err error
		switch {
		case c == '(':
			s.addToken(1, LeftParen)
			s.pushExpressionSequence()
		case c == ')':
			s.addToken(1, RightParen)
			err = s.popExpressionSequence()
		case c == '\'':
			s.addToken(1, SingleQuote)
			s.pushExpression()
		case c == '.':
			s.addToken(1, Dot)
		case c == '#':
			err = s.addHashToken()
			if err == nil {
				s.pushExpression()
			}
		case c == '"':
			err = s.addStringToken()
			if err == nil {
				s.pushExpression()
			}
		case c == '-' || c == '+':
			err = s.addSignToken()
			if err == nil {
				s.pushExpression()
			}
		case c == ';':
			s.skipComment()
		case isNumeric(c):
			err = s.addNumberToken()
			if err == nil {
				s.pushExpression()
			}
		case isIdentifierInitial(c):
			err = s.addIdentifierToken()
			if err == nil {
				s.pushExpression()
			}
		default:
			err = errors.Errorf("unexpected first character of token: %q", c)
		}

		if err != nil {
			return nil, err
		}
	}

	if len(s.expressionSequences) != 1 {
		return nil, errors.New("unexpected expression sequence stack size at eof")
	}
	if err := s.popExpressionSequence(); err != nil {
		return nil, err
	}

	s.tokens = append(s.tokens, Token{Type: EOF})
	return s.tokens, nil
}

func (s *Scanner) addToken(size int, t Type) {
	s.tokens = append(s.tokens, Token{Type: t, Value: s.src[s.pos : s.pos+size]})
	s.pos += size
}

func (s *Scanner) addHashToken() error {
	if s.pos+1 >= len(s.src) {
		return errors.New("unexpected eof after #")
	}
	switch s.src[s.pos+1] {
	case 't':
		s.addToken(2, BooleanTrue)
	case 'f':
		s.addToken(2, BooleanFalse)
	case '\\':
		s.pos += 2
		if s.pos >= len(s.src) {
			return errors.New("unexpected eof after #\\")
		}
		s.tokens = append(s.tokens, Token{Type: Character, Value: string(s.src[s.pos])})
		s.pos++
	default:
		return errors.Errorf("invalid character after #: %q", s.src[s.pos+1])
	}
	return nil
}

func (s *Scanner) addSignToken() error {
	if s.pos+1 >= len(s.src) {
		// End of input ends a lone sign the same way a delimiter does.
		s.addToken(1, Identifier)
		return nil
	}
	next := s.src[s.pos+1]
	switch {
	case isNumeric(next):
		return s.addNumberToken()
	case isDelimiter(next):
		s.addToken(1, Identifier)
		return nil
	default:
		return errors.Errorf("invalid character after - or +: %q", next)
	}
}

func (s *Scanner) addNumberToken() error {
	start := s.pos
	if s.src[start] == '+' {
		start++
	}
	i := s.pos + 1
	for i < len(s.src) && isNumeric(s.src[i]) {
		i++
	}
	s.tokens = append(s.tokens, Token{Type: Number, Value: s.src[start:i]})
	s.pos = i
	return nil
}

func (s *Scanner) addIdentifierToken() error {
	start := s.pos
	i := start + 1
	for i < len(s.src) && isIdentifierSubsequent(s.src[i]) {
		i++
	}
	s.tokens = append(s.tokens, Token{Type: Identifier, Value: s.src[start:i]})
	s.pos = i
	return nil
}

func (s *Scanner) addStringToken() error {
	start := s.pos + 1
	i := start
	for i < len(s.src) && s.src[i] != '"' {
		i++
	}
	if i >= len(s.src) {
		return errors.New("source ended with no closing quote")
	}
	s.tokens = append(s.tokens, Token{Type: String, Value: s.src[start:i]})
	s.pos = i + 1
	return nil
}

func (s *Scanner) skipComment() {
	i := s.pos
	for i < len(s.src) && s.src[i] != '\n' {
		i++
	}
	s.pos = i
}

// pushExpression registers the most recently emitted token as an expression
// in the current sequence, unless it is immediately preceded by a
// single_quote token (quote + operand form one expression, anchored on the
// quote).
func (s *Scanner) pushExpression() {
	n := len(s.tokens)
	if n > 1 && s.tokens[n-2].Type == SingleQuote {
		return
	}
	top := len(s.expressionSequences) - 1
	s.expressionSequences[top] = append(s.expressionSequences[top], n-1)
}

func (s *Scanner) pushExpressionSequence() {
	s.pushExpression()
	s.expressionSequences = append(s.expressionSequences, nil)
}

func (s *Scanner) popExpressionSequence() error {
	if len(s.expressionSequences) == 0 {
		return errors.New("cannot pop from empty expression sequence stack")
	}
	top := len(s.expressionSequences) - 1
	seq := s.expressionSequences[top]
	if len(seq) == 0 {
		return errors.New("no expressions in expression sequence")
	}
	s.tokens[seq[len(seq)-1]].IsFinal = true
	s.expressionSequences = s.expressionSequences[:top]
	return nil
}
