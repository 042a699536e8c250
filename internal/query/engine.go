// Package query answers read-only questions about a parsed save: section
// and entry extraction, field projection, key counting and containment
// checks over both the tree and the raw gamestate bytes.
package query

import (
	"github.com/cloudflare/ahocorasick"

	"github.com/mcncl/pdxquery/internal/models"
	"github.com/mcncl/pdxquery/internal/rawtext"
)

const (
	// KeyTag names the source key of an entry returned by GetEntries.
	KeyTag = "_key"
	// ValueTag holds an unprojected or non-object entry returned by GetEntries.
	ValueTag = "_value"
)

// Options configures section names the engine treats specially.
type Options struct {
	// MetaSection is the reserved section name that selects the meta payload.
	MetaSection string
	// SummarySection is the section GetCountrySummaries iterates.
	SummarySection string
}

// DefaultOptions returns the Stellaris section names.
func DefaultOptions() Options {
	return Options{MetaSection: "meta", SummarySection: "country"}
}

// Engine runs queries against one parsed save. The save is never mutated,
// so an Engine may be shared freely once built.
type Engine struct {
	save *models.Save
	opts Options
}

// KV is one key/value pair for ContainsKV.
type KV struct {
	Key   string
	Value string
}

// String returns the pair in "key=value" form, used as the result key.
func (kv KV) String() string { return kv.Key + "=" + kv.Value }

// New creates an engine over save. Empty option fields take their defaults.
func New(save *models.Save, opts Options) *Engine {
	defaults := DefaultOptions()
	if opts.MetaSection == "" {
		opts.MetaSection = defaults.MetaSection
	}
	if opts.SummarySection == "" {
		opts.SummarySection = defaults.SummarySection
	}
	return &Engine{save: save, opts: opts}
}

// Save returns the underlying save.
func (e *Engine) Save() *models.Save { return e.save }

// Section returns a gamestate section when it is an Object.
func (e *Engine) Section(name string) (*models.Object, bool) {
	return e.save.SectionObject(name)
}

// ExtractSections returns an Object holding the requested sections in
// request order. The meta section name selects the meta payload. Unknown
// names are omitted.
func (e *Engine) ExtractSections(names []string) *models.Object {
	b := models.NewObjectBuilder(len(names))
	for _, name := range names {
		if name == e.opts.MetaSection {
			if e.save.Meta != nil {
				b.Set(name, e.save.Meta)
			}
			continue
		}
		if v, ok := e.save.Section(name); ok {
			b.Set(name, v)
		}
	}
	return b.Build()
}

// GetEntry returns the value stored under key in section.
func (e *Engine) GetEntry(section, key string) (models.Value, bool) {
	sec, ok := e.save.SectionObject(section)
	if !ok {
		return nil, false
	}
	return sec.Get(key)
}

// GetEntries returns the entries of section for keys, in key order. Each
// result carries its key under KeyTag. With a nil fields list the entry is
// wrapped whole under ValueTag; otherwise Object entries are projected to
// the fields they have. Missing keys are skipped.
func (e *Engine) GetEntries(section string, keys []string, fields []string) []*models.Object {
	entries := []*models.Object{}
	sec, ok := e.save.SectionObject(section)
	if !ok {
		return entries
	}
	for _, key := range keys {
		v, ok := sec.Get(key)
		if !ok {
			continue
		}
		entry, isObject := v.(*models.Object)
		if fields == nil || !isObject {
			entries = append(entries, models.NewObject(
				models.Member{Key: KeyTag, Value: models.String(key)},
				models.Member{Key: ValueTag, Value: v},
			))
			continue
		}
		entries = append(entries, project(entry, KeyTag, key, fields))
	}
	return entries
}

// CountKeys counts, for each requested name, the Object members carrying
// that name anywhere beneath a gamestate section.
func (e *Engine) CountKeys(keys []string) map[string]int {
	counts := make(map[string]int, len(keys))
	for _, k := range keys {
		counts[k] = 0
	}
	WalkSections(e.save.Gamestate, func(key string, _ models.Value) {
		if n, ok := counts[key]; ok {
			counts[key] = n + 1
		}
	})
	return counts
}

// ContainsTokens reports, for each token, whether it occurs as a substring
// of the raw gamestate bytes. Tokens are matched in their Windows-1252 form.
// The empty token is trivially present.
func (e *Engine) ContainsTokens(tokens []string) map[string]bool {
	matches := make(map[string]bool, len(tokens))
	var names []string
	var dictionary [][]byte
	for _, tok := range tokens {
		if _, seen := matches[tok]; seen {
			continue
		}
		matches[tok] = tok == ""
		if tok != "" {
			names = append(names, tok)
			dictionary = append(dictionary, models.EncodeWindows1252(tok))
		}
	}
	if len(dictionary) == 0 {
		return matches
	}

	m := ahocorasick.NewMatcher(dictionary)
	for _, i := range m.Match(e.save.Raw) {
		matches[names[i]] = true
	}
	return matches
}

// ContainsKV reports, for each pair, whether some Object member beneath a
// gamestate section has the pair's key and a scalar value whose text equals
// the pair's value. Results are keyed "key=value".
func (e *Engine) ContainsKV(pairs []KV) map[string]bool {
	matches := make(map[string]bool, len(pairs))
	wanted := make(map[string]map[string]bool)
	for _, p := range pairs {
		matches[p.String()] = false
		if wanted[p.Key] == nil {
			wanted[p.Key] = make(map[string]bool)
		}
		wanted[p.Key][p.Value] = true
	}

	WalkSections(e.save.Gamestate, func(key string, v models.Value) {
		values, ok := wanted[key]
		if !ok {
			return
		}
		text, ok := models.ScalarText(v)
		if ok && values[text] {
			matches[KV{Key: key, Value: text}.String()] = true
		}
	})
	return matches
}

// CountrySummaries returns one Object per entry of the summary section, in
// document order, holding the entry key under "id" plus the requested
// fields the entry has.
func (e *Engine) CountrySummaries(fields []string) []*models.Object {
	summaries := []*models.Object{}
	sec, ok := e.save.SectionObject(e.opts.SummarySection)
	if !ok {
		return summaries
	}
	for _, m := range sec.Members() {
		entry, _ := m.Value.(*models.Object)
		summaries = append(summaries, project(entry, "id", m.Key, fields))
	}
	return summaries
}

// DuplicateValues returns every quoted value of field inside the raw text
// of the entry, in source order.
func (e *Engine) DuplicateValues(section, key, field string, offsets rawtext.SectionOffsets) ([]string, bool) {
	return rawtext.DuplicateValues(e.save.Raw, section, key, field, offsets)
}

// EntryText returns the raw text of an entry.
func (e *Engine) EntryText(section, key string, offsets rawtext.SectionOffsets) (string, bool) {
	return rawtext.ExtractEntryText(e.save.Raw, section, key, offsets)
}

// project builds {idKey: id, field: value...} from the fields entry has. A
// nil entry yields only the id.
func project(entry *models.Object, idKey, id string, fields []string) *models.Object {
	b := models.NewObjectBuilder(len(fields) + 1)
	b.Set(idKey, models.String(id))
	if entry != nil {
		for _, f := range fields {
			if v, ok := entry.Get(f); ok {
				b.Set(f, v)
			}
		}
	}
	return b.Build()
}
