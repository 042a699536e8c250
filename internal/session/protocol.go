package session

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/iancoleman/strcase"

	"github.com/mcncl/pdxquery/internal/errors"
	"github.com/mcncl/pdxquery/internal/query"
)

// Op names a session operation.
type Op string

const (
	OpExtractSections     Op = "extract_sections"
	OpIterateSection      Op = "iterate_section"
	OpGetEntry            Op = "get_entry"
	OpGetEntries          Op = "get_entries"
	OpCountKeys           Op = "count_keys"
	OpContainsTokens      Op = "contains_tokens"
	OpContainsKV          Op = "contains_kv"
	OpGetCountrySummaries Op = "get_country_summaries"
	OpGetDuplicateValues  Op = "get_duplicate_values"
	OpGetEntryText        Op = "get_entry_text"
	OpMulti               Op = "multi"
	OpClose               Op = "close"
)

// opAliases maps older op names onto their current name.
var opAliases = map[string]Op{
	"iter_section": OpIterateSection,
}

var knownOps = map[Op]bool{
	OpExtractSections:     true,
	OpIterateSection:      true,
	OpGetEntry:            true,
	OpGetEntries:          true,
	OpCountKeys:           true,
	OpContainsTokens:      true,
	OpContainsKV:          true,
	OpGetCountrySummaries: true,
	OpGetDuplicateValues:  true,
	OpGetEntryText:        true,
	OpMulti:               true,
	OpClose:               true,
}

// Batchable reports whether op may appear inside a multi request.
func (op Op) Batchable() bool {
	switch op {
	case OpIterateSection, OpMulti, OpClose:
		return false
	}
	return knownOps[op]
}

// Request is one decoded request message. Only the fields of its Op are
// meaningful. A nil Fields means no projection was asked for.
type Request struct {
	Op            Op
	SchemaVersion *int
	Section       string
	Sections      []string
	Key           string
	Keys          []string
	Fields        []string
	Field         string
	Tokens        []string
	Pairs         []query.KV
	BatchSize     *int
	Ops           []Request
}

// wireRequest mirrors the JSON message. Pointers distinguish absent fields
// from empty ones.
type wireRequest struct {
	Op            *string            `json:"op"`
	SchemaVersion *int               `json:"schema_version"`
	Section       *string            `json:"section"`
	Sections      *[]string          `json:"sections"`
	Key           *string            `json:"key"`
	Keys          *[]string          `json:"keys"`
	Fields        []string           `json:"fields"`
	Field         *string            `json:"field"`
	Tokens        *[]string          `json:"tokens"`
	Pairs         *[]kvPair          `json:"pairs"`
	BatchSize     *int               `json:"batch_size"`
	Ops           *[]json.RawMessage `json:"ops"`
}

// kvPair accepts either ["key", "value"] or {"key": ..., "value": ...}.
type kvPair query.KV

func (p *kvPair) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var pair []string
		if err := json.Unmarshal(data, &pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("a pair must have exactly two elements, got %d", len(pair))
		}
		p.Key, p.Value = pair[0], pair[1]
		return nil
	}
	var obj struct {
		Key   *string `json:"key"`
		Value *string `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.Key == nil || obj.Value == nil {
		return fmt.Errorf("a pair object needs both key and value")
	}
	p.Key, p.Value = *obj.Key, *obj.Value
	return nil
}

// NormalizeOp maps an op name in any common casing onto its snake_case
// form and resolves aliases.
func NormalizeOp(name string) Op {
	snake := strcase.ToSnake(name)
	if op, ok := opAliases[snake]; ok {
		return op
	}
	return Op(snake)
}

// DecodeRequest decodes and validates one request line. Errors are
// InvalidArgument AppErrors.
func DecodeRequest(line []byte) (Request, error) {
	return decode(line, false)
}

func decode(data []byte, nested bool) (Request, error) {
	var w wireRequest
	if err := json.Unmarshal(data, &w); err != nil {
		return Request{}, errors.NewInvalidArgumentError(fmt.Sprintf("Failed to parse request: %v", err), errors.ErrInvalidRequest)
	}
	if w.Op == nil {
		return Request{}, missing("op")
	}

	op := NormalizeOp(*w.Op)
	if !knownOps[op] {
		return Request{}, errors.NewInvalidArgumentError(fmt.Sprintf("unknown operation '%s'", *w.Op), errors.ErrUnknownOp)
	}
	if nested && !op.Batchable() {
		return Request{}, errors.NewInvalidArgumentError(fmt.Sprintf("operation '%s' cannot be batched", op), errors.ErrInvalidRequest)
	}

	req := Request{Op: op, SchemaVersion: w.SchemaVersion, Fields: w.Fields, BatchSize: w.BatchSize}
	var err error
	switch op {
	case OpExtractSections:
		req.Sections, err = requireList(w.Sections, "sections")
	case OpIterateSection:
		req.Section, err = requireString(w.Section, "section")
	case OpGetEntry, OpGetEntryText:
		if req.Section, err = requireString(w.Section, "section"); err == nil {
			req.Key, err = requireString(w.Key, "key")
		}
	case OpGetEntries:
		if req.Section, err = requireString(w.Section, "section"); err == nil {
			req.Keys, err = requireList(w.Keys, "keys")
		}
	case OpCountKeys:
		req.Keys, err = requireList(w.Keys, "keys")
	case OpContainsTokens:
		req.Tokens, err = requireList(w.Tokens, "tokens")
	case OpContainsKV:
		if w.Pairs == nil {
			err = missing("pairs")
			break
		}
		req.Pairs = make([]query.KV, len(*w.Pairs))
		for i, p := range *w.Pairs {
			req.Pairs[i] = query.KV(p)
		}
	case OpGetCountrySummaries:
		if w.Fields == nil {
			err = missing("fields")
		}
	case OpGetDuplicateValues:
		if req.Section, err = requireString(w.Section, "section"); err != nil {
			break
		}
		if req.Key, err = requireString(w.Key, "key"); err != nil {
			break
		}
		req.Field, err = requireString(w.Field, "field")
	case OpMulti:
		if w.Ops == nil {
			err = missing("ops")
			break
		}
		req.Ops = make([]Request, 0, len(*w.Ops))
		for i, raw := range *w.Ops {
			sub, subErr := decode(raw, true)
			if subErr != nil {
				return Request{}, fmt.Errorf("ops[%d]: %w", i, subErr)
			}
			req.Ops = append(req.Ops, sub)
		}
	}
	if err != nil {
		return Request{}, err
	}
	return req, nil
}

func missing(field string) error {
	return errors.NewInvalidArgumentError(fmt.Sprintf("missing field `%s`", field), errors.ErrMissingField)
}

func requireString(v *string, field string) (string, error) {
	if v == nil {
		return "", missing(field)
	}
	return *v, nil
}

func requireList(v *[]string, field string) ([]string, error) {
	if v == nil {
		return nil, missing(field)
	}
	return *v, nil
}
