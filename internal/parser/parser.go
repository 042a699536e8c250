package parser

import (
	stderrors "errors" // Standard errors package
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mcncl/pdxquery/internal/errors" // Custom errors package
	"github.com/mcncl/pdxquery/internal/models"
)

// FormatError reports a grammar violation with a best-effort location.
type FormatError struct {
	Message string
	Pos     Position
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s at line %d, column %d (offset %d)", e.Message, e.Pos.Line, e.Pos.Column, e.Pos.Offset)
}

// Options configures the parser behavior.
type Options struct {
	// Comments enables '#' line comments outside quoted strings.
	Comments bool
}

// DefaultOptions returns the options used by ParseBytes.
func DefaultOptions() Options {
	return Options{Comments: true}
}

// colorTags are the bare words that may prefix a block in value position,
// as in color = rgb { 10 20 30 }.
var colorTags = map[string]bool{
	"rgb":    true,
	"hsv":    true,
	"hsv360": true,
	"hex":    true,
}

// Parser builds a document tree from Clausewitz text.
type Parser struct {
	lex *Lexer
}

// ParseBytes parses a Clausewitz payload with the default options. Grammar
// violations are returned as a parse-kind AppError wrapping *FormatError.
func ParseBytes(data []byte) (*models.Object, error) {
	return ParseBytesWithOptions(data, DefaultOptions())
}

// ParseBytesWithOptions parses a Clausewitz payload.
func ParseBytesWithOptions(data []byte, opts Options) (*models.Object, error) {
	p := &Parser{lex: NewLexer(data, opts.Comments)}
	root, err := p.parseTop()
	if err != nil {
		var formatErr *FormatError
		if stderrors.As(err, &formatErr) {
			return nil, errors.NewParseError(fmt.Sprintf("malformed input at line %d, column %d", formatErr.Pos.Line, formatErr.Pos.Column), formatErr)
		}
		return nil, errors.NewParseError("failed to parse input", err)
	}
	return root, nil
}

// Parse reads all of reader and parses it.
func Parse(reader io.Reader) (*models.Object, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.NewParseError("failed to read input", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.NewParseError("input is empty or contains only whitespace", errors.ErrEmptyInput)
	}
	return ParseBytes(data)
}

// ParseString parses Clausewitz text from a string
func ParseString(text string) (*models.Object, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.NewParseError("input string is empty or consists only of whitespace", errors.ErrEmptyInput)
	}
	return ParseBytes([]byte(text))
}

// ParseFile parses Clausewitz text from a file path
func ParseFile(filePath string) (*models.Object, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, errors.NewInvalidArgumentError("file path is empty", nil)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFoundError(fmt.Sprintf("failed to open file '%s'", filePath), errors.ErrFileNotFound)
		}
		return nil, errors.NewFileNotFoundError(fmt.Sprintf("failed to open file '%s'", filePath), err)
	}
	if len(data) == 0 {
		return nil, errors.NewParseError(fmt.Sprintf("input file '%s' is empty", filePath), errors.ErrEmptyInput)
	}
	return ParseBytes(data)
}

// ParseSave parses the gamestate payload and, when present, the meta
// payload. The gamestate bytes are retained verbatim on the Save.
func ParseSave(gamestate, meta []byte, opts Options) (*models.Save, error) {
	root, err := ParseBytesWithOptions(gamestate, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse gamestate: %w", err)
	}
	save := &models.Save{Gamestate: root, Raw: gamestate}
	if meta != nil {
		metaRoot, err := ParseBytesWithOptions(meta, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse meta file: %w", err)
		}
		save.Meta = metaRoot
	}
	return save, nil
}

// parseTop parses the unbraced top-level sequence of assignments.
func (p *Parser) parseTop() (*models.Object, error) {
	b := models.NewObjectBuilder(64)
	for {
		tok, err := p.lex.Next()
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case TokenEOF:
			return b.Build(), nil
		case TokenRBrace:
			return nil, &FormatError{Message: "unexpected '}' with no open block", Pos: tok.Pos}
		case TokenLBrace:
			return nil, &FormatError{Message: "unexpected '{' where a key was expected", Pos: tok.Pos}
		case TokenOperator:
			return nil, &FormatError{Message: fmt.Sprintf("unexpected operator %q where a key was expected", tok.Text), Pos: tok.Pos}
		}

		op, err := p.lex.Next()
		if err != nil {
			return nil, err
		}
		if op.Type != TokenOperator {
			return nil, &FormatError{Message: fmt.Sprintf("expected '=' after key %q, found %s", tok.Text, op.Type), Pos: op.Pos}
		}
		value, err := p.parseValue(tok)
		if err != nil {
			return nil, err
		}
		b.Set(models.DecodeWindows1252(tok.Text), value)
	}
}

// parseValue parses the value following an operator.
func (p *Parser) parseValue(key Token) (models.Value, error) {
	tok, err := p.lex.Next()
	if err != nil {
		return nil, err
	}

	switch tok.Type {
	case TokenQuoted:
		return models.String(models.DecodeWindows1252(tok.Text)), nil
	case TokenBare:
		return p.parseBareValue(tok)
	case TokenLBrace:
		return p.parseBlock(tok.Pos)
	case TokenEOF:
		return nil, &FormatError{Message: fmt.Sprintf("missing value for key %q", key.Text), Pos: tok.Pos}
	default:
		return nil, &FormatError{Message: fmt.Sprintf("expected a value for key %q, found %s", key.Text, tok.Type), Pos: tok.Pos}
	}
}

// parseBareValue resolves a bare token, including a color tag that prefixes
// a block.
func (p *Parser) parseBareValue(tok Token) (models.Value, error) {
	if colorTags[string(tok.Text)] {
		next, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		if next.Type == TokenLBrace {
			_, _ = p.lex.Next()
			block, err := p.parseBlock(next.Pos)
			if err != nil {
				return nil, err
			}
			return models.NewObject(models.Member{Key: string(tok.Text), Value: block}), nil
		}
	}
	return bareScalar(tok.Text), nil
}

// parseBlock parses the contents of a block after its opening brace.
// Assignments only make an Object, bare values only make an Array, and a
// mixed block makes an Array in which each run of assignments is one Object
// element. An empty block is an empty Object.
func (p *Parser) parseBlock(open Position) (models.Value, error) {
	var (
		values  []models.Value
		run     *models.ObjectBuilder
		isArray bool
	)
	flush := func() {
		if run != nil {
			values = append(values, run.Build())
			run = nil
		}
	}

	for {
		tok, err := p.lex.Next()
		if err != nil {
			return nil, err
		}

		switch tok.Type {
		case TokenEOF:
			return nil, &FormatError{Message: fmt.Sprintf("unterminated block opened at line %d", open.Line), Pos: tok.Pos}

		case TokenRBrace:
			if !isArray {
				if run == nil {
					return models.NewObject(), nil
				}
				return run.Build(), nil
			}
			flush()
			return models.Array(values), nil

		case TokenOperator:
			return nil, &FormatError{Message: fmt.Sprintf("unexpected operator %q where a key or value was expected", tok.Text), Pos: tok.Pos}

		case TokenLBrace:
			flush()
			isArray = true
			v, err := p.parseBlock(tok.Pos)
			if err != nil {
				return nil, err
			}
			values = append(values, v)

		case TokenQuoted, TokenBare:
			next, err := p.lex.Peek()
			if err != nil {
				return nil, err
			}
			if next.Type == TokenOperator {
				_, _ = p.lex.Next()
				v, err := p.parseValue(tok)
				if err != nil {
					return nil, err
				}
				if run == nil {
					run = models.NewObjectBuilder(8)
				}
				run.Set(models.DecodeWindows1252(tok.Text), v)
				continue
			}

			flush()
			isArray = true
			var v models.Value
			if tok.Type == TokenQuoted {
				v = models.String(models.DecodeWindows1252(tok.Text))
			} else if v, err = p.parseBareValue(tok); err != nil {
				return nil, err
			}
			values = append(values, v)
		}
	}
}

// bareScalar classifies an unquoted token.
func bareScalar(text []byte) models.Value {
	switch string(text) {
	case "yes":
		return models.Bool(true)
	case "no":
		return models.Bool(false)
	}
	s := models.DecodeWindows1252(text)
	if n, ok := models.ParseNumber(s); ok {
		return n
	}
	return models.String(s)
}
