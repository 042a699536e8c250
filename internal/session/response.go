package session

import (
	"bytes"
	"encoding/json"
	stderrors "errors" // Standard errors package

	"github.com/mcncl/pdxquery/internal/config"
	"github.com/mcncl/pdxquery/internal/errors" // Custom errors package
	"github.com/mcncl/pdxquery/internal/models"
	"github.com/mcncl/pdxquery/internal/parser"
)

// Result is the operation-specific body of a success response. The set of
// implementations is closed; each one is a distinct wire shape.
type Result interface {
	result()
}

// ExtractResult answers extract_sections.
type ExtractResult struct {
	Data *models.Object `json:"data"`
}

// EntryResult answers get_entry. Entry is null when not found.
type EntryResult struct {
	Entry models.Value `json:"entry"`
	Found bool         `json:"found"`
}

// EntriesResult answers get_entries.
type EntriesResult struct {
	Entries []*models.Object `json:"entries"`
}

// CountsResult answers count_keys.
type CountsResult struct {
	Counts map[string]int `json:"counts"`
}

// MatchesResult answers contains_tokens and contains_kv.
type MatchesResult struct {
	Matches map[string]bool `json:"matches"`
}

// CountriesResult answers get_country_summaries.
type CountriesResult struct {
	Countries []*models.Object `json:"countries"`
}

// ValuesResult answers get_duplicate_values.
type ValuesResult struct {
	Values []string `json:"values"`
	Found  bool     `json:"found"`
}

// TextResult answers get_entry_text.
type TextResult struct {
	Text  string `json:"text"`
	Found bool   `json:"found"`
}

// MultiResult answers multi with one result per sub-operation, in order.
type MultiResult struct {
	Results []Result `json:"results"`
}

// ClosedResult acknowledges close.
type ClosedResult struct {
	Closed bool `json:"closed"`
}

// StreamHeader opens an iterate_section stream.
type StreamHeader struct {
	Stream  bool   `json:"stream"`
	Op      Op     `json:"op"`
	Section string `json:"section"`
}

// StreamDone ends an iterate_section stream.
type StreamDone struct {
	Done    bool   `json:"done"`
	Op      Op     `json:"op"`
	Section string `json:"section"`
}

func (ExtractResult) result()   {}
func (EntryResult) result()     {}
func (EntriesResult) result()   {}
func (CountsResult) result()    {}
func (MatchesResult) result()   {}
func (CountriesResult) result() {}
func (ValuesResult) result()    {}
func (TextResult) result()      {}
func (MultiResult) result()     {}
func (ClosedResult) result()    {}
func (StreamHeader) result()    {}
func (StreamDone) result()      {}

// NewExtractResult wraps the requested sections under the version stamp.
func NewExtractResult(v config.Versions, sections *models.Object) ExtractResult {
	members := make([]models.Member, 0, 3+sections.Len())
	members = append(members,
		models.Member{Key: "schema_version", Value: models.Int(int64(v.SchemaVersion))},
		models.Member{Key: "tool_version", Value: models.String(v.ToolVersion)},
		models.Member{Key: "game", Value: models.String(v.Game)},
	)
	members = append(members, sections.Members()...)
	return ExtractResult{Data: models.NewObject(members...)}
}

// NewEntryResult builds a get_entry result. A missing entry is reported
// as a null entry.
func NewEntryResult(v models.Value, found bool) EntryResult {
	if !found {
		return EntryResult{Entry: models.Null{}}
	}
	return EntryResult{Entry: v, Found: true}
}

// NewStreamHeader builds the first message of a section stream.
func NewStreamHeader(section string) StreamHeader {
	return StreamHeader{Stream: true, Op: OpIterateSection, Section: section}
}

// NewStreamDone builds the last message of a section stream.
func NewStreamDone(section string) StreamDone {
	return StreamDone{Done: true, Op: OpIterateSection, Section: section}
}

// Success is the {ok:true, ...} envelope around a Result.
type Success struct {
	Result Result
}

// MarshalJSON splices "ok":true in front of the result's own fields.
func (s Success) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s.Result); err != nil {
		return nil, err
	}
	body := bytes.TrimSpace(buf.Bytes())
	out := make([]byte, 0, len(body)+10)
	out = append(out, `{"ok":true`...)
	if len(body) > 2 {
		out = append(out, ',')
		out = append(out, body[1:]...)
	} else {
		out = append(out, '}')
	}
	return out, nil
}

// ErrorEnvelope is the {ok:false, ...} response for a failed request or a
// failed load.
type ErrorEnvelope struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error"`
	Message  string `json:"message"`
	Line     *int   `json:"line,omitempty"`
	Col      *int   `json:"col,omitempty"`
	ExitCode int    `json:"exit_code"`
	config.Versions
}

// NewErrorEnvelope classifies err and stamps it with v.
func NewErrorEnvelope(err error, v config.Versions) ErrorEnvelope {
	kind := errors.KindOf(err)
	env := ErrorEnvelope{
		Error:    string(kind),
		Message:  err.Error(),
		ExitCode: kind.ExitCode(),
		Versions: v,
	}
	var formatErr *parser.FormatError
	if stderrors.As(err, &formatErr) {
		line, col := formatErr.Pos.Line, formatErr.Pos.Column
		env.Line, env.Col = &line, &col
	}
	return env
}
