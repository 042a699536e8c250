package parser

import "fmt"

// TokenType represents the type of a lexer token.
type TokenType uint8

const (
	TokenEOF TokenType = iota
	TokenLBrace
	TokenRBrace
	TokenOperator // =, <, >, <=, >=, !=, ==, ?=
	TokenQuoted   // "quoted string", escapes already resolved
	TokenBare     // unquoted token: number, yes/no, identifier, date
)

// String returns the token type name.
func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenLBrace:
		return "{"
	case TokenRBrace:
		return "}"
	case TokenOperator:
		return "OPERATOR"
	case TokenQuoted:
		return "QUOTED"
	case TokenBare:
		return "BARE"
	default:
		return "UNKNOWN"
	}
}

// Position is a source location. Offset is a byte offset; Line and Column
// are 1-based, Column counted in bytes.
type Position struct {
	Offset int
	Line   int
	Column int
}

// String returns position as "line:column".
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is one lexeme. Text aliases the input unless a quoted string
// contained escapes.
type Token struct {
	Type TokenType
	Text []byte
	Pos  Position
}

// String returns a debug representation of the token.
func (t Token) String() string {
	if len(t.Text) == 0 {
		return t.Type.String()
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Text)
}

// Lexer tokenizes Clausewitz text lazily, one token at a time, so that
// multi-hundred-megabyte payloads are never materialized as a token slice.
type Lexer struct {
	input     []byte
	pos       int
	line      int
	lineStart int
	comments  bool

	peeked    Token
	hasPeeked bool
}

// NewLexer creates a lexer over input. When comments is true, '#' starts a
// comment that runs to the end of the line.
func NewLexer(input []byte, comments bool) *Lexer {
	l := &Lexer{input: input, line: 1, comments: comments}
	if len(input) >= 3 && input[0] == 0xEF && input[1] == 0xBB && input[2] == 0xBF {
		l.pos = 3
		l.lineStart = 3
	}
	return l
}

// Peek returns the next token without consuming it.
func (l *Lexer) Peek() (Token, error) {
	if l.hasPeeked {
		return l.peeked, nil
	}
	tok, err := l.scan()
	if err != nil {
		return Token{}, err
	}
	l.peeked, l.hasPeeked = tok, true
	return tok, nil
}

// Next consumes and returns the next token.
func (l *Lexer) Next() (Token, error) {
	if l.hasPeeked {
		l.hasPeeked = false
		return l.peeked, nil
	}
	return l.scan()
}

func (l *Lexer) currentPos() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.pos - l.lineStart + 1}
}

func (l *Lexer) scan() (Token, error) {
	l.skipWhitespaceAndComments()

	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.currentPos()}, nil
	}

	start := l.currentPos()
	ch := l.input[l.pos]

	switch ch {
	case '{':
		l.pos++
		return Token{Type: TokenLBrace, Text: l.input[start.Offset:l.pos], Pos: start}, nil
	case '}':
		l.pos++
		return Token{Type: TokenRBrace, Text: l.input[start.Offset:l.pos], Pos: start}, nil
	case '"':
		return l.scanQuoted()
	case '=', '<', '>':
		l.pos++
		if l.pos < len(l.input) && l.input[l.pos] == '=' {
			l.pos++
		}
		return Token{Type: TokenOperator, Text: l.input[start.Offset:l.pos], Pos: start}, nil
	case '!', '?':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '=' {
			l.pos += 2
			return Token{Type: TokenOperator, Text: l.input[start.Offset:l.pos], Pos: start}, nil
		}
	}

	return l.scanBare(), nil
}

// scanQuoted scans a quoted string. Only \" and \\ are escapes; any other
// backslash sequence is kept literally.
func (l *Lexer) scanQuoted() (Token, error) {
	start := l.currentPos()
	l.pos++ // consume opening "
	bodyStart := l.pos

	var unescaped []byte
	for {
		if l.pos >= len(l.input) {
			return Token{}, &FormatError{Message: "unterminated quoted string", Pos: start}
		}
		ch := l.input[l.pos]
		switch ch {
		case '"':
			text := l.input[bodyStart:l.pos]
			if unescaped != nil {
				text = append(unescaped, l.input[bodyStart:l.pos]...)
			}
			l.pos++ // consume closing "
			return Token{Type: TokenQuoted, Text: text, Pos: start}, nil
		case '\\':
			if l.pos+1 < len(l.input) && (l.input[l.pos+1] == '"' || l.input[l.pos+1] == '\\') {
				unescaped = append(unescaped, l.input[bodyStart:l.pos]...)
				unescaped = append(unescaped, l.input[l.pos+1])
				l.pos += 2
				bodyStart = l.pos
				continue
			}
			l.pos++
		case '\n':
			l.pos++
			l.line++
			l.lineStart = l.pos
		default:
			l.pos++
		}
	}
}

// scanBare scans an unquoted token. It always consumes at least one byte.
func (l *Lexer) scanBare() Token {
	start := l.currentPos()
	l.pos++
	for l.pos < len(l.input) && !l.isBareTerminator(l.pos) {
		l.pos++
	}
	return Token{Type: TokenBare, Text: l.input[start.Offset:l.pos], Pos: start}
}

func (l *Lexer) isBareTerminator(i int) bool {
	switch l.input[i] {
	case ' ', '\t', '\r', '\n', '\f', '\v', '{', '}', '"', '=', '<', '>':
		return true
	case '#':
		return l.comments
	case '!', '?':
		return i+1 < len(l.input) && l.input[i+1] == '='
	}
	return false
}

// skipWhitespaceAndComments skips whitespace and # comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for l.pos < len(l.input) {
		switch l.input[l.pos] {
		case ' ', '\t', '\r', '\f', '\v':
			l.pos++
		case '\n':
			l.pos++
			l.line++
			l.lineStart = l.pos
		case '#':
			if !l.comments {
				return
			}
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}
