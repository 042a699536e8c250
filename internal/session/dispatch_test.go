package session

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/pdxquery/internal/errors"
	"github.com/mcncl/pdxquery/internal/models"
	"github.com/mcncl/pdxquery/internal/parser"
	"github.com/mcncl/pdxquery/internal/query"
	"github.com/mcncl/pdxquery/internal/rawtext"
)

const gamestate = "version=\"v3.12.4\"\n" +
	"country={\n" +
	"\t0=\n\t{\n" +
	"\t\tname=\"United Nations of Earth\"\n" +
	"\t\tis_ai=no\n" +
	"\t}\n" +
	"\t1=\n\t{\n" +
	"\t\tname=\"Tzynn Empire\"\n" +
	"\t\tis_ai=yes\n" +
	"\t}\n" +
	"}\n" +
	"leaders={\n" +
	"\t7=\n\t{\n" +
	"\t\tname=\"Alice\"\n" +
	"\t\ttraits=\"leader_trait_a\"\n" +
	"\t\ttraits=\"leader_trait_b\"\n" +
	"\t}\n" +
	"}\n" +
	"fleet={\n" +
	"\t3={ name=\"Home Guard\" }\n" +
	"\t4={ name=\"Strike Force\" }\n" +
	"\t5={ name=\"Reserve\" }\n" +
	"}\n"

const meta = "name=\"My Save\"\ndate=\"2250.03.01\"\n"

func newSave(t *testing.T) *models.Save {
	t.Helper()
	save, err := parser.ParseSave([]byte(gamestate), []byte(meta), parser.DefaultOptions())
	require.NoError(t, err)
	return save
}

func newDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	return NewDispatcher(query.New(newSave(t), query.DefaultOptions()), testVersions)
}

func TestDispatcher_Execute(t *testing.T) {
	d := newDispatcher(t)

	t.Run("get_entry", func(t *testing.T) {
		result, err := d.Execute(Request{Op: OpGetEntry, Section: "country", Key: "1"}, nil)
		require.NoError(t, err)
		entry, ok := result.(EntryResult)
		require.True(t, ok)
		assert.True(t, entry.Found)
		assert.JSONEq(t, `{"name":"Tzynn Empire","is_ai":true}`, marshal(t, entry.Entry))
	})

	t.Run("get_entry missing", func(t *testing.T) {
		result, err := d.Execute(Request{Op: OpGetEntry, Section: "country", Key: "99"}, nil)
		require.NoError(t, err)
		assert.Equal(t, EntryResult{Entry: models.Null{}}, result)
	})

	t.Run("extract_sections", func(t *testing.T) {
		result, err := d.Execute(Request{Op: OpExtractSections, Sections: []string{"meta", "version", "nope"}}, nil)
		require.NoError(t, err)
		assert.JSONEq(t,
			`{"ok":true,"data":{"schema_version":1,"tool_version":"0.4.0","game":"stellaris","meta":{"name":"My Save","date":"2250.03.01"},"version":"v3.12.4"}}`,
			marshal(t, Success{Result: result}))
	})

	t.Run("contains_kv", func(t *testing.T) {
		result, err := d.Execute(Request{Op: OpContainsKV, Pairs: []query.KV{{Key: "is_ai", Value: "yes"}, {Key: "name", Value: "Bob"}}}, nil)
		require.NoError(t, err)
		assert.Equal(t, MatchesResult{Matches: map[string]bool{"is_ai=yes": true, "name=Bob": false}}, result)
	})

	t.Run("get_duplicate_values", func(t *testing.T) {
		result, err := d.Execute(Request{Op: OpGetDuplicateValues, Section: "leaders", Key: "7", Field: "traits"}, nil)
		require.NoError(t, err)
		assert.Equal(t, ValuesResult{Values: []string{"leader_trait_a", "leader_trait_b"}, Found: true}, result)
	})

	t.Run("get_entry_text", func(t *testing.T) {
		result, err := d.Execute(Request{Op: OpGetEntryText, Section: "fleet", Key: "4"}, nil)
		require.NoError(t, err)
		assert.Equal(t, TextResult{Text: "4={ name=\"Strike Force\" }", Found: true}, result)
	})

	t.Run("not a query", func(t *testing.T) {
		_, err := d.Execute(Request{Op: OpClose}, nil)
		require.Error(t, err)
		assert.Equal(t, errors.KindInvalidArgument, errors.KindOf(err))
	})
}

func TestDispatcher_Multi(t *testing.T) {
	d := newDispatcher(t)
	req, err := DecodeRequest([]byte(`{"op":"multi","ops":[` +
		`{"op":"get_entry","section":"country","key":"0"},` +
		`{"op":"count_keys","keys":["name"]}]}`))
	require.NoError(t, err)

	result, err := d.Execute(req, nil)
	require.NoError(t, err)
	multi, ok := result.(MultiResult)
	require.True(t, ok)
	require.Len(t, multi.Results, 2)

	entry, ok := multi.Results[0].(EntryResult)
	require.True(t, ok)
	assert.True(t, entry.Found)
	assert.Equal(t, CountsResult{Counts: map[string]int{"name": 6}}, multi.Results[1])
}

func TestDispatcher_ExecuteBatch(t *testing.T) {
	d := newDispatcher(t)

	t.Run("shares the offset cache", func(t *testing.T) {
		results, offsets, err := d.ExecuteBatch([]Request{
			{Op: OpGetEntryText, Section: "fleet", Key: "3"},
			{Op: OpGetDuplicateValues, Section: "leaders", Key: "7", Field: "traits"},
			{Op: OpGetEntryText, Section: "fleet", Key: "5"},
		}, nil)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, TextResult{Text: "5={ name=\"Reserve\" }", Found: true}, results[2])
		assert.Contains(t, offsets, "fleet")
		assert.Contains(t, offsets, "leaders")
	})

	t.Run("caller cache is reused", func(t *testing.T) {
		offsets := rawtext.SectionOffsets{}
		_, returned, err := d.ExecuteBatch([]Request{{Op: OpGetEntryText, Section: "country", Key: "0"}}, offsets)
		require.NoError(t, err)
		assert.Contains(t, offsets, "country")
		assert.Len(t, returned, 1)
	})

	t.Run("rejects streaming ops", func(t *testing.T) {
		_, _, err := d.ExecuteBatch([]Request{{Op: OpCountKeys}, {Op: OpIterateSection, Section: "fleet"}}, nil)
		require.Error(t, err)
		assert.True(t, stderrors.Is(err, errors.ErrInvalidRequest))
		assert.Contains(t, err.Error(), "ops[1]")
	})
}
