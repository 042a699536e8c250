// Package extract implements the one-shot commands: pull named sections out
// of a save as a single document, or stream one section as JSON lines.
package extract

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mcncl/pdxquery/internal/archive"
	"github.com/mcncl/pdxquery/internal/config"
	"github.com/mcncl/pdxquery/internal/errors"
	"github.com/mcncl/pdxquery/internal/formatter"
	"github.com/mcncl/pdxquery/internal/models"
	"github.com/mcncl/pdxquery/internal/parser"
	"github.com/mcncl/pdxquery/internal/query"
)

// Output formats.
const (
	FormatJSON       = "json"
	FormatClausewitz = "clausewitz"
	FormatJSONL      = "jsonl"
)

// Extractor runs one-shot extractions with a fixed version stamp.
type Extractor struct {
	Versions    config.Versions
	Parser      parser.Options
	MetaSection string
}

// New creates an Extractor from the loaded configuration.
func New(cfg *config.Config, versions config.Versions) *Extractor {
	return &Extractor{
		Versions:    versions,
		Parser:      parser.Options{Comments: cfg.Parser.Comments},
		MetaSection: cfg.Session.MetaSection,
	}
}

// Request describes one extraction.
type Request struct {
	Path          string
	Sections      []string
	SchemaVersion int
	Format        string
}

// SplitSections parses a comma-separated section list, dropping blanks.
func SplitSections(list string) []string {
	var sections []string
	for _, s := range strings.Split(list, ",") {
		if s = strings.TrimSpace(s); s != "" {
			sections = append(sections, s)
		}
	}
	return sections
}

// ExtractSave reads a save container and writes the requested sections to
// w. The meta payload is read only when its section is requested.
func (x *Extractor) ExtractSave(req Request, w io.Writer) error {
	if err := x.validate(req, FormatJSON, FormatClausewitz); err != nil {
		return err
	}
	meta := archive.MetaSkip
	if slices.Contains(req.Sections, x.MetaSection) {
		meta = archive.MetaRequired
	}
	payloads, err := archive.ReadSave(req.Path, meta)
	if err != nil {
		return err
	}
	return x.extract(payloads, req, w)
}

// ExtractGamestate is ExtractSave for an already-extracted gamestate file.
func (x *Extractor) ExtractGamestate(req Request, w io.Writer) error {
	if err := x.validate(req, FormatJSON, FormatClausewitz); err != nil {
		return err
	}
	gamestate, err := archive.ReadGamestate(req.Path)
	if err != nil {
		return err
	}
	return x.extract(&archive.Payloads{Gamestate: gamestate}, req, w)
}

// IterSave streams the entries of one section as JSON lines. The first line
// carries the version stamp and section name alongside the first entry.
func (x *Extractor) IterSave(req Request, w io.Writer) error {
	if err := x.validate(req, FormatJSONL); err != nil {
		return err
	}
	if len(req.Sections) != 1 {
		return errors.NewInvalidArgumentError("exactly one section must be given", errors.ErrMissingField)
	}
	payloads, err := archive.ReadSave(req.Path, archive.MetaSkip)
	if err != nil {
		return err
	}
	save, err := parser.ParseSave(payloads.Gamestate, nil, x.Parser)
	if err != nil {
		return err
	}

	section := req.Sections[0]
	sec, ok := save.SectionObject(section)
	if !ok {
		log.Debug().Str("section", section).Msg("section absent or not a mapping, nothing to stream")
		return nil
	}

	bw := bufio.NewWriter(w)
	var line []byte
	for i, m := range sec.Members() {
		var entry *models.Object
		if i == 0 {
			entry = models.NewObject(
				x.header(models.Member{Key: "section", Value: models.String(section)},
					models.Member{Key: "key", Value: models.String(m.Key)},
					models.Member{Key: "value", Value: m.Value})...,
			)
		} else {
			entry = models.NewObject(
				models.Member{Key: "key", Value: models.String(m.Key)},
				models.Member{Key: "value", Value: m.Value},
			)
		}
		line = models.AppendJSON(line[:0], entry)
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return fmt.Errorf("failed to write entry %q: %w", m.Key, err)
		}
	}
	return bw.Flush()
}

// Document builds {schema_version, tool_version, game, ...sections}.
func (x *Extractor) Document(sections *models.Object) *models.Object {
	return models.NewObject(x.header(sections.Members()...)...)
}

func (x *Extractor) header(rest ...models.Member) []models.Member {
	members := make([]models.Member, 0, 3+len(rest))
	members = append(members,
		models.Member{Key: "schema_version", Value: models.Int(int64(x.Versions.SchemaVersion))},
		models.Member{Key: "tool_version", Value: models.String(x.Versions.ToolVersion)},
		models.Member{Key: "game", Value: models.String(x.Versions.Game)},
	)
	return append(members, rest...)
}

func (x *Extractor) validate(req Request, formats ...string) error {
	if err := x.Versions.CheckSchema(req.SchemaVersion); err != nil {
		return err
	}
	if !slices.Contains(formats, req.Format) {
		return errors.NewInvalidArgumentError(
			fmt.Sprintf("Unsupported format: %s. Supported: %s", req.Format, strings.Join(formats, ", ")),
			errors.ErrUnsupportedFormat,
		)
	}
	return nil
}

func (x *Extractor) extract(payloads *archive.Payloads, req Request, w io.Writer) error {
	save, err := parser.ParseSave(payloads.Gamestate, payloads.Meta, x.Parser)
	if err != nil {
		return err
	}
	engine := query.New(save, query.Options{MetaSection: x.MetaSection})
	sections := engine.ExtractSections(req.Sections)

	if req.Format == FormatClausewitz {
		out, err := formatter.NewFormatter().Format(sections)
		if err != nil {
			return errors.NewInvalidArgumentError("sections cannot be written as Clausewitz text", err)
		}
		_, err = w.Write(out)
		return err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, models.AppendJSON(nil, x.Document(sections)), "", "  "); err != nil {
		return fmt.Errorf("failed to indent document: %w", err)
	}
	pretty.WriteByte('\n')
	_, err = pretty.WriteTo(w)
	return err
}

// OpenOutput returns stdout for "-" and a created file otherwise. Closing
// the returned stdout leaves it open.
func OpenOutput(path string, stdout io.Writer) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.NewInvalidArgumentError(fmt.Sprintf("cannot create output file '%s'", path), err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
