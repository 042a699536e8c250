package rawtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = "version=\"v3\"\n" +
	"leaders={\n" +
	"\t12=\n\t{\n" +
	"\t\tname=\"Alice\"\n" +
	"\t\ttraits=\"leader_trait_a\"\n" +
	"\t\ttraits=\"leader_trait_b\"\n" +
	"\t\tstats={ level=3 }\n" +
	"\t}\n" +
	"\t13={\n" +
	"\t\tname=\"Bob {the} Brave\"\n" +
	"\t\ttraits=\"x\"\n" +
	"\t}\n" +
	"\t14 = 7\n" +
	"}\n" +
	"country={\n" +
	"\t0=\n\t{\n" +
	"\t\tname=\"caf\xe9\"\n" +
	"\t}\n" +
	"}\n"

func TestFindSection(t *testing.T) {
	buf := []byte(sample)

	r, ok := FindSection(buf, "leaders")
	require.True(t, ok)
	assert.Equal(t, byte('\n'), buf[r.Start])
	assert.Equal(t, byte('}'), buf[r.End])
	assert.Contains(t, string(buf[r.Start:r.End]), "Alice")
	assert.NotContains(t, string(buf[r.Start:r.End]), "country")

	_, ok = FindSection(buf, "missing")
	assert.False(t, ok)

	_, ok = FindSection(buf, "version")
	assert.False(t, ok, "a scalar assignment is not a section")

	r, ok = FindSection([]byte("leaders={\n\t1={ a=1 }\n}\n"), "leaders")
	require.True(t, ok)
	assert.Equal(t, 9, r.Start)
}

func TestFindSection_SkipsScalarHeader(t *testing.T) {
	buf := []byte("leaders=none\nleaders={\n\t1={ traits=\"q\" }\n}\n")

	r, ok := FindSection(buf, "leaders")
	require.True(t, ok)
	assert.Equal(t, "\n\t1={ traits=\"q\" }\n", string(buf[r.Start:r.End]))

	values, found := DuplicateValues(buf, "leaders", "1", "traits", nil)
	assert.True(t, found)
	assert.Equal(t, []string{"q"}, values)

	_, ok = FindSection([]byte("x=1\nleaders=none\nleaders=2\n"), "leaders")
	assert.False(t, ok)
}

func TestExtractEntryBlock(t *testing.T) {
	buf := []byte(sample)

	tests := []struct {
		name     string
		section  string
		key      string
		expected string
		found    bool
	}{
		{
			name:     "brace on next line",
			section:  "leaders",
			key:      "12",
			expected: "12=\n\t{\n\t\tname=\"Alice\"\n\t\ttraits=\"leader_trait_a\"\n\t\ttraits=\"leader_trait_b\"\n\t\tstats={ level=3 }\n\t}",
			found:    true,
		},
		{
			name:     "compact with brace in quoted name",
			section:  "leaders",
			key:      "13",
			expected: "13={\n\t\tname=\"Bob {the} Brave\"\n\t\ttraits=\"x\"\n\t}",
			found:    true,
		},
		{
			name:     "scalar entry ends at line end",
			section:  "leaders",
			key:      "14",
			expected: "14 = 7",
			found:    true,
		},
		{"missing key", "leaders", "99", "", false},
		{"key from a later section", "leaders", "0", "", false},
		{"key prefix does not match", "leaders", "1", "", false},
		{"missing section", "fleet", "12", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, found := ExtractEntryBlock(buf, tt.section, tt.key, nil)
			assert.Equal(t, tt.found, found)
			if tt.found {
				assert.Equal(t, tt.expected, string(buf[r.Start:r.End]))
			}
		})
	}
}

func TestExtractEntryBlock_Unbalanced(t *testing.T) {
	buf := []byte("leaders={\n\t1={\n\t\ta=1\n")
	r, ok := ExtractEntryBlock(buf, "leaders", "1", nil)
	require.True(t, ok)
	assert.Equal(t, len(buf), r.End)
}

func TestExtractFieldValues(t *testing.T) {
	block := []byte("12={ traits=\"a\" name=\"n\" traits=\"b\" traits=\"c\" }")
	assert.Equal(t, []string{"a", "b", "c"}, ExtractFieldValues(block, "traits"))
	assert.Equal(t, []string{"n"}, ExtractFieldValues(block, "name"))

	values := ExtractFieldValues(block, "missing")
	assert.NotNil(t, values)
	assert.Empty(t, values)

	assert.Empty(t, ExtractFieldValues([]byte("traits=\"unterminated"), "traits"))
}

func TestDuplicateValues(t *testing.T) {
	buf := []byte(sample)

	values, found := DuplicateValues(buf, "leaders", "12", "traits", nil)
	assert.True(t, found)
	assert.Equal(t, []string{"leader_trait_a", "leader_trait_b"}, values)

	values, found = DuplicateValues(buf, "leaders", "12", "ethics", nil)
	assert.True(t, found)
	assert.Empty(t, values)

	values, found = DuplicateValues(buf, "leaders", "404", "traits", nil)
	assert.False(t, found)
	assert.Empty(t, values)

	values, found = DuplicateValues(buf, "country", "0", "name", nil)
	assert.True(t, found)
	assert.Equal(t, []string{"café"}, values)
}

func TestExtractEntryText(t *testing.T) {
	text, found := ExtractEntryText([]byte(sample), "country", "0", nil)
	assert.True(t, found)
	assert.Equal(t, "0=\n\t{\n\t\tname=\"café\"\n\t}", text)

	text, found = ExtractEntryText([]byte(sample), "country", "7", nil)
	assert.False(t, found)
	assert.Empty(t, text)
}

func TestSectionOffsets(t *testing.T) {
	buf := []byte(sample)
	offsets := SectionOffsets{}

	_, ok := ExtractEntryBlock(buf, "leaders", "12", offsets)
	require.True(t, ok)
	_, ok = ExtractEntryBlock(buf, "fleet", "1", offsets)
	require.False(t, ok)

	leaders, ok := offsets["leaders"]
	require.True(t, ok)
	expected, _ := FindSection(buf, "leaders")
	assert.Equal(t, expected, leaders)
	assert.Negative(t, offsets["fleet"].Start)

	// Later lookups trust the cache rather than rescanning.
	country, _ := FindSection(buf, "country")
	offsets["leaders"] = country
	_, ok = ExtractEntryBlock(buf, "leaders", "0", offsets)
	assert.True(t, ok)
}
