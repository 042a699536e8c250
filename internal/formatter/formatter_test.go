package formatter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/pdxquery/internal/models"
	"github.com/mcncl/pdxquery/internal/parser"
	"github.com/mcncl/pdxquery/internal/rawtext"
)

func TestFormat_SaveLayout(t *testing.T) {
	root, err := parser.ParseString(`version="v3" country={0={name="A" ships={1 2} flags={} modules={{type=a}{type=b}}}}`)
	require.NoError(t, err)

	formatter := NewFormatter()
	formatted, err := formatter.FormatString(root)
	require.NoError(t, err)

	expectedOutput := "version=\"v3\"\n" +
		"country={\n" +
		"\t0=\n" +
		"\t{\n" +
		"\t\tname=\"A\"\n" +
		"\t\tships={ 1 2 }\n" +
		"\t\tflags=\n" +
		"\t\t{\n" +
		"\t\t}\n" +
		"\t\tmodules=\n" +
		"\t\t{\n" +
		"\t\t\t{\n" +
		"\t\t\t\ttype=\"a\"\n" +
		"\t\t\t}\n" +
		"\t\t\t{\n" +
		"\t\t\t\ttype=\"b\"\n" +
		"\t\t\t}\n" +
		"\t\t}\n" +
		"\t}\n" +
		"}\n"

	assert.Equal(t, expectedOutput, formatted)
}

func TestFormat_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"scalars", `a=1 b=-2.5 c=yes d=no e="text" f=bare_word g="2200.01.01"`},
		{"escapes", `name="The \"Great\" Empire" path="C:\\saves"`},
		{"nested", `country={ 0={ name="A" budget={ income=10.0 } } 1={ name="B" } }`},
		{"arrays", `list={ 1 2 3 } words={ "a" "b" } nested={ { x=1 } { y=2 } }`},
		{"mixed block", `levels={ 10 20 0=2 1=3 }`},
		{"quoted keys", `"key with space"=1 "a=b"="c"`},
		{"color", `color=rgb { 1 2 3 }`},
	}

	formatter := NewFormatter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original, err := parser.ParseString(tt.input)
			require.NoError(t, err)

			formatted, err := formatter.Format(original)
			require.NoError(t, err)

			reparsed, err := parser.ParseBytes(formatted)
			require.NoError(t, err, "formatted text:\n%s", formatted)
			assert.True(t, models.Equal(original, reparsed), "round trip changed the tree:\n%s", formatted)
		})
	}
}

func TestFormat_Windows1252(t *testing.T) {
	root := models.NewObject(models.Member{Key: "name", Value: models.String("café €")})

	formatted, err := NewFormatter().Format(root)
	require.NoError(t, err)
	assert.Equal(t, []byte("name=\"caf\xe9 \x80\"\n"), formatted)
}

func TestFormat_RawTextCompatible(t *testing.T) {
	root := models.NewObject(models.Member{Key: "leaders", Value: models.NewObject(
		models.Member{Key: "7", Value: models.NewObject(
			models.Member{Key: "name", Value: models.String("Alice")},
			models.Member{Key: "traits", Value: models.String("leader_trait_a")},
		)},
	)})

	formatted, err := NewFormatter().Format(root)
	require.NoError(t, err)

	values, found := rawtext.DuplicateValues(append([]byte("\n"), formatted...), "leaders", "7", "traits", nil)
	assert.True(t, found)
	assert.Equal(t, []string{"leader_trait_a"}, values)
}

func TestFormat_Errors(t *testing.T) {
	root := models.NewObject(models.Member{Key: "broken", Value: models.NewObject(
		models.Member{Key: "inner", Value: models.Null{}},
	)})

	_, err := NewFormatter().Format(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `key "broken"`)
	assert.Contains(t, err.Error(), "null")
}

func TestFormat_Empty(t *testing.T) {
	formatted, err := NewFormatter().Format(nil)
	require.NoError(t, err)
	assert.Empty(t, formatted)

	formatted, err = NewFormatter().Format(models.NewObject())
	require.NoError(t, err)
	assert.Empty(t, formatted)
}
