package main

import (
	"encoding/json"
	stderrors "errors" // Standard errors package
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"github.com/mcncl/pdxquery/internal/config"
	"github.com/mcncl/pdxquery/internal/errors" // Custom errors package
	"github.com/mcncl/pdxquery/internal/extract"
	"github.com/mcncl/pdxquery/internal/observability"
	"github.com/mcncl/pdxquery/internal/session"
)

// Version information
const (
	Version = "0.4.0"
)

// CLI defines the command-line interface
type CLI struct {
	Config  string           `help:"Path to a config file. Defaults to the nearest .pdxquery.yml." type:"path"`
	Debug   bool             `help:"Enable debug logging." short:"d"`
	Version kong.VersionFlag `help:"Show version information." short:"v"`

	ExtractSave      ExtractSaveCmd      `cmd:"" help:"Extract sections from a save as one document."`
	IterSave         IterSaveCmd         `cmd:"" help:"Stream the entries of one section as JSON lines."`
	ExtractGamestate ExtractGamestateCmd `cmd:"" help:"Extract sections from an unpacked gamestate file."`
	Serve            ServeCmd            `cmd:"" help:"Load a save once and answer JSON-lines requests on stdin."`
}

// Context holds the runtime context shared by all commands
type Context struct {
	Config   *config.Config
	Versions config.Versions
	Logger   zerolog.Logger
	Stdin    io.Reader
	Stdout   io.Writer
}

// ExtractSaveCmd writes the requested sections of a save as one document.
type ExtractSaveCmd struct {
	Path          string `arg:"" help:"Path to the .sav container."`
	Sections      string `help:"Comma-separated section names." required:""`
	SchemaVersion int    `help:"Requested output schema version." default:"1"`
	Output        string `help:"Output file, or - for stdout." short:"o" default:"-"`
	Format        string `help:"Output format: json or clausewitz." default:"json"`
}

func (c *ExtractSaveCmd) Run(ctx *Context) error {
	return withOutput(c.Output, ctx.Stdout, func(w io.Writer) error {
		return extract.New(ctx.Config, ctx.Versions).ExtractSave(extract.Request{
			Path:          c.Path,
			Sections:      extract.SplitSections(c.Sections),
			SchemaVersion: c.SchemaVersion,
			Format:        c.Format,
		}, w)
	})
}

// IterSaveCmd streams one section as JSON lines.
type IterSaveCmd struct {
	Path          string `arg:"" help:"Path to the .sav container."`
	Section       string `help:"Section to stream." required:""`
	SchemaVersion int    `help:"Requested output schema version." default:"1"`
	Output        string `help:"Output file, or - for stdout." short:"o" default:"-"`
	Format        string `help:"Output format. Only jsonl is supported." default:"jsonl"`
}

func (c *IterSaveCmd) Run(ctx *Context) error {
	return withOutput(c.Output, ctx.Stdout, func(w io.Writer) error {
		return extract.New(ctx.Config, ctx.Versions).IterSave(extract.Request{
			Path:          c.Path,
			Sections:      []string{c.Section},
			SchemaVersion: c.SchemaVersion,
			Format:        c.Format,
		}, w)
	})
}

// ExtractGamestateCmd is extract-save for a gamestate file already taken out
// of its container.
type ExtractGamestateCmd struct {
	Path          string `arg:"" help:"Path to the gamestate text file."`
	Sections      string `help:"Comma-separated section names." required:""`
	SchemaVersion int    `help:"Requested output schema version." default:"1"`
	Output        string `help:"Output file, or - for stdout." short:"o" default:"-"`
	Format        string `help:"Output format: json or clausewitz." default:"json"`
}

func (c *ExtractGamestateCmd) Run(ctx *Context) error {
	return withOutput(c.Output, ctx.Stdout, func(w io.Writer) error {
		return extract.New(ctx.Config, ctx.Versions).ExtractGamestate(extract.Request{
			Path:          c.Path,
			Sections:      extract.SplitSections(c.Sections),
			SchemaVersion: c.SchemaVersion,
			Format:        c.Format,
		}, w)
	})
}

// ServeCmd runs a query session over stdin and stdout.
type ServeCmd struct {
	Path            string `help:"Path to the .sav container." required:""`
	SchemaVersion   int    `help:"Requested response schema version." default:"1"`
	BatchSize       int    `help:"Entries per iterate_section message. Overrides the config file."`
	MetricsTextfile string `help:"Write session metrics to this file on exit. Overrides the config file."`
}

func (c *ServeCmd) Run(ctx *Context) error {
	opts := session.NewOptions(ctx.Config, ctx.Versions)
	if c.BatchSize != 0 {
		opts.BatchSize = c.BatchSize
	}
	if c.MetricsTextfile != "" {
		opts.MetricsTextfile = c.MetricsTextfile
	}
	if opts.MetricsTextfile != "" {
		opts.Metrics = observability.NewMetrics()
	}
	opts.Logger = &ctx.Logger

	if code := session.NewServer(opts).Run(c.Path, c.SchemaVersion, ctx.Stdin, ctx.Stdout); code != 0 {
		return exitCode(code)
	}
	return nil
}

// exitCode ends the process with a status whose error has already been
// reported on the output stream.
type exitCode int

func (c exitCode) Error() string { return fmt.Sprintf("exit status %d", int(c)) }

func main() {
	os.Exit(execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// execute parses args, runs the selected command, and returns the process
// exit code. Errors from one-shot commands are written to stderr as a JSON
// error line.
func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("pdxquery"),
		kong.Description("Extract and query Paradox Clausewitz save files"),
		kong.Vars{"version": Version},
		kong.Writers(stdout, stderr),
		kong.UsageOnError(),
	)
	if err != nil {
		fmt.Fprintf(stderr, "pdxquery: %v\n", err)
		return errors.KindInvalidArgument.ExitCode()
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "pdxquery: error: %v\n", err)
		var parseErr *kong.ParseError
		if stderrors.As(err, &parseErr) && parseErr.Context != nil {
			_ = parseErr.Context.PrintUsage(true)
		}
		return errors.KindInvalidArgument.ExitCode()
	}

	cfg, err := config.LoadConfigWithCLI(cli.Config, config.Overrides{Debug: cli.Debug})
	versions := config.NewConfig().Versions(Version)
	if err != nil {
		return reportError(stderr, err, versions)
	}
	versions = cfg.Versions(Version)

	logger, err := observability.InitLogger("pdxquery", cfg.Logging.Level, cfg.Logging.Format, stderr)
	if err != nil {
		return reportError(stderr, err, versions)
	}
	logger.Debug().Str("command", kctx.Command()).Str("tool_version", Version).Msg("starting")

	err = kctx.Run(&Context{
		Config:   cfg,
		Versions: versions,
		Logger:   logger,
		Stdin:    stdin,
		Stdout:   stdout,
	})
	if err == nil {
		return 0
	}

	var code exitCode
	if stderrors.As(err, &code) {
		return int(code)
	}
	logger.Error().Err(err).Msg(errors.UserFriendlyError(err))
	return reportError(stderr, err, versions)
}

// reportError writes err as a single JSON error line and returns its exit code.
func reportError(stderr io.Writer, err error, versions config.Versions) int {
	env := session.NewErrorEnvelope(err, versions)
	enc := json.NewEncoder(stderr)
	enc.SetEscapeHTML(false)
	if encErr := enc.Encode(env); encErr != nil {
		fmt.Fprintf(stderr, "%s\n", errors.UserFriendlyError(err))
	}
	return env.ExitCode
}

// withOutput runs fn against the output named by path and closes it.
func withOutput(path string, stdout io.Writer, fn func(io.Writer) error) error {
	out, err := extract.OpenOutput(path, stdout)
	if err != nil {
		return err
	}
	if err := fn(out); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
