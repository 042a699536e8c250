// Package session serves queries against one resident save over a
// line-delimited JSON protocol. Requests are read from one stream and
// answered on another, one at a time, in arrival order.
package session

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcncl/pdxquery/internal/archive"
	"github.com/mcncl/pdxquery/internal/config"
	"github.com/mcncl/pdxquery/internal/errors"
	"github.com/mcncl/pdxquery/internal/models"
	"github.com/mcncl/pdxquery/internal/observability"
	"github.com/mcncl/pdxquery/internal/parser"
	"github.com/mcncl/pdxquery/internal/query"
)

// State is a session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateHandling
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateHandling:
		return "handling"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Options configures a Server.
type Options struct {
	Versions        config.Versions
	BatchSize       int
	Parser          parser.Options
	Query           query.Options
	MetricsTextfile string

	// Metrics is optional.
	Metrics *observability.Metrics
	// Logger defaults to the global zerolog logger.
	Logger *zerolog.Logger
}

// NewOptions derives server options from the loaded configuration.
func NewOptions(cfg *config.Config, versions config.Versions) Options {
	return Options{
		Versions:  versions,
		BatchSize: cfg.Session.BatchSize,
		Parser:    parser.Options{Comments: cfg.Parser.Comments},
		Query: query.Options{
			MetaSection:    cfg.Session.MetaSection,
			SummarySection: cfg.Session.SummarySection,
		},
		MetricsTextfile: cfg.Session.MetricsTextfile,
	}
}

// Server holds one parsed save and answers requests against it.
type Server struct {
	opts  Options
	log   zerolog.Logger
	state State

	save       *models.Save
	dispatcher *Dispatcher

	out     *bufio.Writer
	enc     *json.Encoder
	scratch []byte
	handled int
}

// NewServer creates an idle server.
func NewServer(opts Options) *Server {
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Server{
		opts: opts,
		log:  logger.With().Str("component", "session").Logger(),
	}
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	return s.state
}

func (s *Server) transition(to State) {
	s.log.Debug().Str("from", s.state.String()).Str("to", to.String()).Msg("state transition")
	s.state = to
}

// Run is the whole serve command: it checks the requested schema version,
// loads the save at path, and serves requests from r until close or end of
// input. Failures before serving are written to w as a single error
// envelope. Run returns the process exit code.
func (s *Server) Run(path string, schemaVersion int, r io.Reader, w io.Writer) int {
	s.setOutput(w)

	if err := s.opts.Versions.CheckSchema(schemaVersion); err != nil {
		s.log.Error().Err(err).Msg("refusing to load save")
		return s.fail(err)
	}
	if err := s.Load(path); err != nil {
		s.log.Error().Err(err).Str("path", path).Msg("failed to load save")
		return s.fail(err)
	}
	if err := s.Serve(r, w); err != nil {
		s.log.Error().Err(err).Msg("session ended abnormally")
		return errors.KindOf(err).ExitCode()
	}
	return 0
}

func (s *Server) fail(err error) int {
	s.transition(StateClosed)
	if writeErr := s.writeMessage(NewErrorEnvelope(err, s.opts.Versions)); writeErr != nil {
		s.log.Error().Err(writeErr).Msg("failed to write error envelope")
	}
	return errors.KindOf(err).ExitCode()
}

// Load reads and parses the save at path. The meta payload is loaded when
// the container has one.
func (s *Server) Load(path string) error {
	s.transition(StateLoading)
	s.log.Info().Str("path", path).Str("tool_version", s.opts.Versions.ToolVersion).Msg("loading save")
	start := time.Now()

	payloads, err := archive.ReadSave(path, archive.MetaOptional)
	if err != nil {
		return err
	}
	save, err := parser.ParseSave(payloads.Gamestate, payloads.Meta, s.opts.Parser)
	if err != nil {
		return err
	}

	elapsed := time.Since(start)
	if s.opts.Metrics != nil {
		s.opts.Metrics.RecordLoad(elapsed)
	}
	s.log.Info().
		Dur("duration", elapsed).
		Int("sections", save.Gamestate.Len()).
		Bool("meta", save.Meta != nil).
		Int("bytes", len(save.Raw)).
		Msg("save loaded")

	s.Attach(save)
	return nil
}

// Attach makes save the resident document and readies the server.
func (s *Server) Attach(save *models.Save) {
	s.save = save
	s.dispatcher = NewDispatcher(query.New(save, s.opts.Query), s.opts.Versions)
	s.transition(StateReady)
}

// Serve answers requests from r on w until a close request or the end of
// r. Malformed requests are answered with an error envelope and do not end
// the session. A non-nil error means the streams themselves failed.
func (s *Server) Serve(r io.Reader, w io.Writer) error {
	if s.state != StateReady {
		return fmt.Errorf("cannot serve in state %s", s.state)
	}
	s.setOutput(w)
	s.log.Info().Msg("entering request loop")

	in := bufio.NewReaderSize(r, 64*1024)
	for {
		line, readErr := in.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			closed, err := s.handle(line)
			if err != nil {
				s.close()
				return fmt.Errorf("failed to write response: %w", err)
			}
			if closed {
				s.close()
				return nil
			}
		}
		if readErr == io.EOF {
			s.log.Info().Msg("input ended without close")
			s.close()
			return nil
		}
		if readErr != nil {
			s.close()
			return fmt.Errorf("failed to read request: %w", readErr)
		}
	}
}

// handle answers one request line. closed reports a close request; err is
// only set when writing the response failed.
func (s *Server) handle(line []byte) (closed bool, err error) {
	s.transition(StateHandling)
	defer func() {
		if !closed {
			s.transition(StateReady)
		}
	}()
	s.handled++
	start := time.Now()

	req, reqErr := DecodeRequest(line)
	op := "invalid"
	if reqErr == nil {
		op = string(req.Op)
		if req.SchemaVersion != nil {
			reqErr = s.opts.Versions.CheckSchema(*req.SchemaVersion)
		}
	}

	if reqErr == nil {
		switch req.Op {
		case OpClose:
			s.log.Info().Msg("received close request")
			err, closed = s.writeMessage(Success{Result: ClosedResult{Closed: true}}), true
		case OpIterateSection:
			err = s.stream(req)
		default:
			var result Result
			if result, reqErr = s.dispatcher.Execute(req, nil); reqErr == nil {
				err = s.writeMessage(Success{Result: result})
			}
		}
	}
	if reqErr != nil {
		s.log.Warn().Err(reqErr).Str("op", op).Msg("request failed")
		err = s.writeMessage(NewErrorEnvelope(reqErr, s.opts.Versions))
	}

	elapsed := time.Since(start)
	s.log.Debug().Str("op", op).Dur("duration", elapsed).Bool("ok", reqErr == nil).Msg("handled request")
	if s.opts.Metrics != nil {
		s.opts.Metrics.RecordRequest(op, reqErr == nil, elapsed)
	}
	return closed, err
}

// stream answers iterate_section: a header, the section's entries one per
// message or in batches, then a done marker. A section that is missing or
// not a mapping streams no entries.
func (s *Server) stream(req Request) error {
	batchSize := s.opts.BatchSize
	if req.BatchSize != nil {
		batchSize = *req.BatchSize
	}

	if err := s.writeMessage(Success{Result: NewStreamHeader(req.Section)}); err != nil {
		return err
	}

	if sec, ok := s.save.SectionObject(req.Section); ok {
		members := sec.Members()
		if batchSize <= 1 {
			for _, m := range members {
				if err := s.writeEntry(m); err != nil {
					return err
				}
			}
		} else {
			for start := 0; start < len(members); start += batchSize {
				end := min(start+batchSize, len(members))
				if err := s.writeBatch(members[start:end]); err != nil {
					return err
				}
			}
		}
	}

	return s.writeMessage(Success{Result: NewStreamDone(req.Section)})
}

func (s *Server) close() {
	s.transition(StateClosed)
	s.log.Info().Int("requests", s.handled).Msg("session ended")

	if s.opts.Metrics != nil && s.opts.MetricsTextfile != "" {
		if err := s.opts.Metrics.WriteTextfile(s.opts.MetricsTextfile); err != nil {
			s.log.Error().Err(err).Str("path", s.opts.MetricsTextfile).Msg("failed to write metrics")
		}
	}
}

func (s *Server) setOutput(w io.Writer) {
	if s.out != nil {
		s.out.Reset(w)
		return
	}
	s.out = bufio.NewWriterSize(w, 64*1024)
	s.enc = json.NewEncoder(s.out)
	s.enc.SetEscapeHTML(false)
}

// writeMessage writes v as one JSON line and flushes it.
func (s *Server) writeMessage(v any) error {
	if err := s.enc.Encode(v); err != nil {
		return err
	}
	return s.out.Flush()
}

// writeEntry writes {"ok":true,"entry":{"key":...,"value":...}}. Values are
// serialized in place; large sections are never copied.
func (s *Server) writeEntry(m models.Member) error {
	b := append(s.scratch[:0], `{"ok":true,"entry":`...)
	b = appendEntry(b, m)
	b = append(b, "}\n"...)
	return s.writeRaw(b)
}

// writeBatch writes {"ok":true,"entries":[{"key":...,"value":...},...]}.
func (s *Server) writeBatch(members []models.Member) error {
	b := append(s.scratch[:0], `{"ok":true,"entries":[`...)
	for i, m := range members {
		if i > 0 {
			b = append(b, ',')
		}
		b = appendEntry(b, m)
	}
	b = append(b, "]}\n"...)
	return s.writeRaw(b)
}

func (s *Server) writeRaw(b []byte) error {
	s.scratch = b
	if s.opts.Metrics != nil {
		s.opts.Metrics.RecordStreamMessage()
	}
	if _, err := s.out.Write(b); err != nil {
		return err
	}
	return s.out.Flush()
}

func appendEntry(dst []byte, m models.Member) []byte {
	dst = append(dst, `{"key":`...)
	dst = models.AppendJSONString(dst, m.Key)
	dst = append(dst, `,"value":`...)
	dst = models.AppendJSON(dst, m.Value)
	return append(dst, '}')
}
