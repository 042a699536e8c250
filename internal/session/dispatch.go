package session

import (
	"fmt"

	"github.com/mcncl/pdxquery/internal/config"
	"github.com/mcncl/pdxquery/internal/errors"
	"github.com/mcncl/pdxquery/internal/query"
	"github.com/mcncl/pdxquery/internal/rawtext"
)

// Dispatcher maps decoded requests onto query engine calls. It performs no
// I/O and holds no per-request state.
type Dispatcher struct {
	engine   *query.Engine
	versions config.Versions
}

// NewDispatcher creates a dispatcher over a loaded engine.
func NewDispatcher(engine *query.Engine, versions config.Versions) *Dispatcher {
	return &Dispatcher{engine: engine, versions: versions}
}

// Execute runs one non-streaming operation. Raw-text lookups consult and
// fill offsets, which may be nil.
func (d *Dispatcher) Execute(req Request, offsets rawtext.SectionOffsets) (Result, error) {
	e := d.engine
	switch req.Op {
	case OpExtractSections:
		return NewExtractResult(d.versions, e.ExtractSections(req.Sections)), nil
	case OpGetEntry:
		v, found := e.GetEntry(req.Section, req.Key)
		return NewEntryResult(v, found), nil
	case OpGetEntries:
		return EntriesResult{Entries: e.GetEntries(req.Section, req.Keys, req.Fields)}, nil
	case OpCountKeys:
		return CountsResult{Counts: e.CountKeys(req.Keys)}, nil
	case OpContainsTokens:
		return MatchesResult{Matches: e.ContainsTokens(req.Tokens)}, nil
	case OpContainsKV:
		return MatchesResult{Matches: e.ContainsKV(req.Pairs)}, nil
	case OpGetCountrySummaries:
		return CountriesResult{Countries: e.CountrySummaries(req.Fields)}, nil
	case OpGetDuplicateValues:
		values, found := e.DuplicateValues(req.Section, req.Key, req.Field, offsets)
		return ValuesResult{Values: values, Found: found}, nil
	case OpGetEntryText:
		text, found := e.EntryText(req.Section, req.Key, offsets)
		return TextResult{Text: text, Found: found}, nil
	case OpMulti:
		results, _, err := d.ExecuteBatch(req.Ops, nil)
		if err != nil {
			return nil, err
		}
		return MultiResult{Results: results}, nil
	}
	return nil, errors.NewInvalidArgumentError(fmt.Sprintf("operation '%s' is not a query", req.Op), errors.ErrInvalidRequest)
}

// ExecuteBatch runs ops in order and returns their results in the same
// order. The section offset cache is passed in and handed back so its
// lifetime stays with the caller; a nil cache starts empty.
func (d *Dispatcher) ExecuteBatch(ops []Request, offsets rawtext.SectionOffsets) ([]Result, rawtext.SectionOffsets, error) {
	if offsets == nil {
		offsets = rawtext.SectionOffsets{}
	}
	results := make([]Result, 0, len(ops))
	for i, op := range ops {
		if !op.Op.Batchable() {
			return nil, offsets, errors.NewInvalidArgumentError(fmt.Sprintf("ops[%d]: operation '%s' cannot be batched", i, op.Op), errors.ErrInvalidRequest)
		}
		result, err := d.Execute(op, offsets)
		if err != nil {
			return nil, offsets, fmt.Errorf("ops[%d]: %w", i, err)
		}
		results = append(results, result)
	}
	return results, offsets, nil
}
