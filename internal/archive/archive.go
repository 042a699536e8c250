// Package archive reads the named payloads out of a save container.
package archive

import (
	"bytes"
	stderrors "errors" // Standard errors package
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/klauspost/compress/zip"

	"github.com/mcncl/pdxquery/internal/errors" // Custom errors package
)

const (
	// GamestatePayload is the name of the primary payload inside a save.
	GamestatePayload = "gamestate"
	// MetaPayload is the name of the secondary payload inside a save.
	MetaPayload = "meta"
)

// maxPrealloc bounds the buffer reserved up front from a payload's declared
// size.
const maxPrealloc = 1 << 30

// Payloads holds the raw bytes read from a save. Meta is nil when it was
// not read.
type Payloads struct {
	Gamestate []byte
	Meta      []byte
}

// MetaMode selects how ReadSave treats the meta payload.
type MetaMode int

const (
	// MetaSkip never reads the meta payload.
	MetaSkip MetaMode = iota
	// MetaOptional reads the meta payload when the container has one.
	MetaOptional
	// MetaRequired reads the meta payload and fails when it is absent.
	MetaRequired
)

// ReadSave opens the save container at path and reads the gamestate
// payload, plus the meta payload as selected by meta. A missing container
// or a missing required payload is a FileNotFound error; an unreadable
// container is a ParseError.
func ReadSave(path string, meta MetaMode) (*Payloads, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewFileNotFoundError(fmt.Sprintf("failed to open file '%s'", path), errors.ErrFileNotFound)
		}
		return nil, errors.NewParseError(fmt.Sprintf("failed to read ZIP archive '%s'", path), err)
	}
	defer r.Close()

	gamestate, err := readPayload(&r.Reader, GamestatePayload)
	if err != nil {
		return nil, err
	}
	payloads := &Payloads{Gamestate: gamestate}

	switch meta {
	case MetaRequired:
		if payloads.Meta, err = readPayload(&r.Reader, MetaPayload); err != nil {
			return nil, err
		}
	case MetaOptional:
		payloads.Meta, err = readPayload(&r.Reader, MetaPayload)
		if err != nil && !stderrors.Is(err, errors.ErrPayloadMissing) {
			return nil, err
		}
	}
	return payloads, nil
}

// ReadGamestate reads an already-extracted gamestate file.
func ReadGamestate(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewFileNotFoundError(fmt.Sprintf("failed to open file '%s'", path), errors.ErrFileNotFound)
		}
		return nil, errors.NewFileNotFoundError(fmt.Sprintf("failed to open file '%s'", path), err)
	}
	return data, nil
}

func readPayload(r *zip.Reader, name string) ([]byte, error) {
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.NewParseError(fmt.Sprintf("failed to open %s payload", name), err)
		}
		defer rc.Close()

		var buf bytes.Buffer
		if size := f.UncompressedSize64; size < maxPrealloc {
			buf.Grow(int(size))
		}
		if _, err := io.Copy(&buf, rc); err != nil {
			return nil, errors.NewParseError(fmt.Sprintf("failed to read %s payload", name), err)
		}
		return buf.Bytes(), nil
	}
	return nil, errors.NewFileNotFoundError(fmt.Sprintf("no %s file in archive", name), errors.ErrPayloadMissing)
}
