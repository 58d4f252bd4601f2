// Package pipeline lexes and parses a set of files concurrently. One lex task
// is queued per file; a lex task stores its result and queues the parse task
// for the same file, so a file is always parsed after it was lexed.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xplshn/cppillr/pkg/config"
	"github.com/xplshn/cppillr/pkg/lexer"
	"github.com/xplshn/cppillr/pkg/metrics"
	"github.com/xplshn/cppillr/pkg/parser"
	"github.com/xplshn/cppillr/pkg/pool"
	"github.com/xplshn/cppillr/pkg/program"
	"github.com/xplshn/cppillr/pkg/telemetry"
	"github.com/xplshn/cppillr/pkg/util"
)

type Options struct {
	// Threads is the number of workers; cfg.Threads is used when zero.
	Threads int
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	// OnFatal receives lex and parse errors. It defaults to util.Fatal, which
	// ends the process.
	OnFatal func(error)
}

type Result struct {
	Store *program.Store
	// FileErrors joins the *util.FileOpenError of every file that could not
	// be read, or is nil.
	FileErrors error
}

type runner struct {
	ctx     context.Context
	cfg     *config.Config
	store   *program.Store
	pool    *pool.Pool
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	onFatal func(error)

	mu       sync.Mutex
	fileErrs []error
}

// Run processes files and returns once every queued task has finished. A
// path of "-" or "" reads the standard input.
func Run(ctx context.Context, cfg *config.Config, files []string, opts Options) *Result {
	r := &runner{
		ctx:     ctx,
		cfg:     cfg,
		store:   program.NewStore(),
		metrics: opts.Metrics,
		logger:  opts.Logger,
		tracer:  telemetry.Tracer(),
		onFatal: opts.OnFatal,
	}
	if r.metrics == nil {
		r.metrics = metrics.New()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.onFatal == nil {
		r.onFatal = util.Fatal
	}
	threads := opts.Threads
	if threads <= 0 {
		threads = cfg.Threads
	}

	r.pool = pool.New(threads, pool.WithObserver(r.metrics), pool.WithLogger(r.logger))
	defer r.pool.Close()

	ctx, span := r.tracer.Start(ctx, "pipeline", trace.WithAttributes(
		attribute.Int("files", len(files)),
		attribute.Int("threads", r.pool.Size()),
	))
	defer span.End()
	r.ctx = ctx

	r.logger.Debug("starting pipeline", "files", len(files), "threads", r.pool.Size())
	for _, path := range files {
		if path == "-" {
			path = ""
		}
		if err := r.pool.Execute(r.lexTask(path)); err != nil {
			r.logger.Error("cannot queue file", "file", util.DisplayName(path), "err", err)
		}
	}
	r.pool.WaitAll()

	res := &Result{Store: r.store, FileErrors: errors.Join(r.fileErrs...)}
	if res.FileErrors != nil {
		span.SetStatus(codes.Error, "some files could not be read")
	}
	return res
}

func (r *runner) lexTask(path string) pool.Task {
	return func() {
		ctx, span := r.tracer.Start(r.ctx, "lex", trace.WithAttributes(
			attribute.String("file", util.DisplayName(path)),
		))
		defer span.End()

		res, err := lexer.LexFile(path, r.cfg)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())

			var ferr *util.FileOpenError
			if errors.As(err, &ferr) {
				r.metrics.FileFailed("lex", "open_error")
				r.mu.Lock()
				r.fileErrs = append(r.fileErrs, ferr)
				r.mu.Unlock()
				util.Report(ferr)
				return
			}
			r.metrics.FileFailed("lex", "lex_error")
			r.onFatal(err)
			return
		}

		r.metrics.FileLexed(res)
		i := r.store.AddLex(res)
		span.SetAttributes(attribute.Int("tokens", len(res.Tokens)), attribute.Int("lex_index", i))
		r.logger.Debug("lexed file", "file", util.DisplayName(path), "tokens", len(res.Tokens), "bytes", res.BytesRead)

		if err := r.pool.Execute(r.parseTask(ctx, i)); err != nil {
			r.logger.Error("cannot queue parse task", "file", util.DisplayName(path), "err", err)
		}
	}
}

func (r *runner) parseTask(ctx context.Context, lexIndex int) pool.Task {
	return func() {
		_, span := r.tracer.Start(ctx, "parse", trace.WithAttributes(attribute.Int("lex_index", lexIndex)))
		defer span.End()

		lex, err := r.store.Lex(lexIndex)
		if err != nil {
			r.onFatal(err)
			return
		}
		res, err := parser.Parse(lex, lexIndex, r.cfg)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			r.metrics.FileFailed("parse", "parse_error")
			r.onFatal(err)
			return
		}

		r.metrics.FileParsed(res)
		r.store.AddParse(res)
		span.SetAttributes(attribute.Int("functions", len(res.Functions)))
		r.logger.Debug("parsed file", "file", util.DisplayName(res.Filename), "functions", len(res.Functions))
	}
}
