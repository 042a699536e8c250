package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGamestate = "version=\"v3.12.4\"\n" +
	"country={\n" +
	"\t0=\n\t{\n\t\tname=\"Earth\"\n\t}\n" +
	"\t1=\n\t{\n\t\tname=\"Tzynn\"\n\t}\n" +
	"}\n"

func writeSave(t *testing.T, payloads map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range payloads {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return path
}

// writeConfig writes a config file so tests do not depend on the
// discovery walk from the working directory.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".pdxquery.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(args, strings.NewReader(stdin), &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

// lastJSONLine decodes the final line of s, where error lines are written.
func lastJSONLine(t *testing.T, s string) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(s), "\n")
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &m), "line %q", lines[len(lines)-1])
	return m
}

func TestExtractSave(t *testing.T) {
	cfg := writeConfig(t, "logging:\n  level: warn\n")
	path := writeSave(t, map[string]string{"gamestate": testGamestate, "meta": "name=\"My Save\"\n"})

	res := runCLI(t, "", "--config", cfg, "extract-save", path, "--sections", "meta,country")
	require.Equal(t, 0, res.code, res.stderr)
	assert.JSONEq(t, `{
		"schema_version": 1,
		"tool_version": "0.4.0",
		"game": "stellaris",
		"meta": {"name": "My Save"},
		"country": {"0": {"name": "Earth"}, "1": {"name": "Tzynn"}}
	}`, res.stdout)
}

func TestExtractSave_ToFile(t *testing.T) {
	cfg := writeConfig(t, "logging:\n  level: warn\n")
	path := writeSave(t, map[string]string{"gamestate": testGamestate})
	output := filepath.Join(t.TempDir(), "country.txt")

	res := runCLI(t, "", "--config", cfg, "extract-save", path, "--sections", "country", "--format", "clausewitz", "-o", output)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Empty(t, res.stdout)

	content, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "country={\n\t0=\n\t{\n\t\tname=\"Earth\"\n\t}\n\t1=\n\t{\n\t\tname=\"Tzynn\"\n\t}\n}\n", string(content))
}

func TestIterSave(t *testing.T) {
	cfg := writeConfig(t, "logging:\n  level: warn\n")
	path := writeSave(t, map[string]string{"gamestate": testGamestate})

	res := runCLI(t, "", "--config", cfg, "iter-save", path, "--section", "country")
	require.Equal(t, 0, res.code, res.stderr)

	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"schema_version":1,"tool_version":"0.4.0","game":"stellaris","section":"country","key":"0","value":{"name":"Earth"}}`, lines[0])
	assert.JSONEq(t, `{"key":"1","value":{"name":"Tzynn"}}`, lines[1])
}

func TestExtractGamestate(t *testing.T) {
	cfg := writeConfig(t, "logging:\n  level: warn\n")
	path := filepath.Join(t.TempDir(), "gamestate")
	require.NoError(t, os.WriteFile(path, []byte(testGamestate), 0644))

	res := runCLI(t, "", "--config", cfg, "extract-gamestate", path, "--sections", "version")
	require.Equal(t, 0, res.code, res.stderr)
	assert.JSONEq(t, `{"schema_version":1,"tool_version":"0.4.0","game":"stellaris","version":"v3.12.4"}`, res.stdout)
}

func TestOneShotErrors(t *testing.T) {
	cfg := writeConfig(t, "logging:\n  level: warn\n")
	save := writeSave(t, map[string]string{"gamestate": testGamestate})
	broken := writeSave(t, map[string]string{"gamestate": "a={\n\tb=1\n}}\n"})
	missing := filepath.Join(t.TempDir(), "missing.sav")

	tests := []struct {
		name  string
		args  []string
		code  int
		error string
	}{
		{"unsupported schema", []string{"extract-save", missing, "--sections", "country", "--schema-version", "2"}, 3, "InvalidArgument"},
		{"unsupported format", []string{"extract-save", save, "--sections", "country", "--format", "yaml"}, 3, "InvalidArgument"},
		{"missing container", []string{"extract-save", missing, "--sections", "country"}, 1, "FileNotFound"},
		{"missing meta", []string{"extract-save", save, "--sections", "meta"}, 1, "FileNotFound"},
		{"malformed gamestate", []string{"iter-save", broken, "--section", "a"}, 2, "ParseError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, "", append([]string{"--config", cfg}, tt.args...)...)
			assert.Equal(t, tt.code, res.code)
			assert.Empty(t, res.stdout)

			env := lastJSONLine(t, res.stderr)
			assert.Equal(t, false, env["ok"])
			assert.Equal(t, tt.error, env["error"])
			assert.Equal(t, float64(tt.code), env["exit_code"])
			assert.Equal(t, "0.4.0", env["tool_version"])
		})
	}
}

func TestArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"unknown command", []string{"frobnicate"}},
		{"missing sections", []string{"extract-save", "x.sav"}},
		{"missing serve path", []string{"serve"}},
		{"bad integer", []string{"serve", "--path", "x.sav", "--batch-size", "many"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, "", tt.args...)
			assert.Equal(t, 3, res.code)
			assert.Contains(t, res.stderr, "pdxquery: error:")
		})
	}
}

func TestInvalidConfig(t *testing.T) {
	cfg := writeConfig(t, "logging:\n  format: xml\n")
	res := runCLI(t, "", "--config", cfg, "extract-save", "x.sav", "--sections", "country")
	assert.Equal(t, 3, res.code)
	env := lastJSONLine(t, res.stderr)
	assert.Contains(t, env["message"], "unknown logging format 'xml'")
}

func TestServe(t *testing.T) {
	cfg := writeConfig(t, "logging:\n  level: warn\n")

	t.Run("session", func(t *testing.T) {
		path := writeSave(t, map[string]string{"gamestate": testGamestate})
		metrics := filepath.Join(t.TempDir(), "session.prom")

		res := runCLI(t,
			`{"op":"get_entry","section":"country","key":"1"}`+"\n"+
				`{"op":"iterate_section","section":"country"}`+"\n"+
				`{"op":"close"}`+"\n",
			"--config", cfg, "serve", "--path", path, "--batch-size", "1", "--metrics-textfile", metrics)
		require.Equal(t, 0, res.code, res.stderr)

		lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
		require.Len(t, lines, 6)
		assert.Equal(t, `{"ok":true,"entry":{"name":"Tzynn"},"found":true}`, lines[0])
		assert.Equal(t, `{"ok":true,"entry":{"key":"0","value":{"name":"Earth"}}}`, lines[2])
		assert.Equal(t, `{"ok":true,"closed":true}`, lines[5])

		content, err := os.ReadFile(metrics)
		require.NoError(t, err)
		assert.Contains(t, string(content), "pdxquery_session_requests_total")
	})

	t.Run("load failure", func(t *testing.T) {
		res := runCLI(t, "", "--config", cfg, "serve", "--path", filepath.Join(t.TempDir(), "missing.sav"))
		assert.Equal(t, 1, res.code)
		env := lastJSONLine(t, res.stdout)
		assert.Equal(t, "FileNotFound", env["error"])
	})

	t.Run("unsupported schema", func(t *testing.T) {
		res := runCLI(t, "", "--config", cfg, "serve", "--path", "x.sav", "--schema-version", "7")
		assert.Equal(t, 3, res.code)
		env := lastJSONLine(t, res.stdout)
		assert.Equal(t, "InvalidArgument", env["error"])
		assert.Contains(t, env["message"], "Requested schema version 7 is not supported. Supported: 1")
	})
}
