package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/Hara602/opsclean/internal/cleanup"
	"github.com/Hara602/opsclean/internal/monitor"
	"github.com/Hara602/opsclean/internal/report"
	"github.com/Hara602/opsclean/pkg/action"
)

// Mailer delivers a rendered report.
type Mailer interface {
	Send(subject, body string) error
}

type Options struct {
	Logger *zap.Logger
	Tracer trace.Tracer

	// Session identifies the run in the report header.
	Session string
	// ReportDir and Prefix decide where the JSON snapshot goes.
	ReportDir string
	Prefix    string
	// Markdown also writes a rendered report beside the JSON file.
	Markdown bool
	// Mailer, if set, receives the rendered report.
	Mailer Mailer

	Now  func() time.Time
	Host func(ctx context.Context) report.Host
}

// Summary is what a session leaves behind.
type Summary struct {
	Session      string
	Started      time.Time
	Finished     time.Time
	Records      int
	Counts       map[action.Kind]int
	JSONPath     string
	MarkdownPath string
}

// Failures returns the number of Error actions recorded.
func (s Summary) Failures() int { return s.Counts[action.KindError] }

// Engine runs a set of cleanup steps against one monitor and persists what
// they reported.
type Engine struct {
	mon   *monitor.Monitor
	steps []cleanup.Step
	opts  Options
	log   *zap.Logger
}

func NewEngine(mon *monitor.Monitor, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("core")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Host == nil {
		opts.Host = report.CollectHost
	}
	return &Engine{
		mon:  mon,
		opts: opts,
		log:  opts.Logger.Named("core"),
	}
}

func (e *Engine) AddStep(s cleanup.Step) {
	e.steps = append(e.steps, s)
}

// Steps returns the names of the registered steps in registration order.
func (e *Engine) Steps() []string {
	names := make([]string, 0, len(e.steps))
	for _, s := range e.steps {
		names = append(names, s.Name())
	}
	return names
}

// Run executes every step concurrently, waits for all of them, drains the
// monitor and persists the log. Step failures do not stop sibling steps; they
// are aggregated into the returned error together with any persistence
// failure. The Summary is filled in as far as the session got.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	sum := Summary{Session: e.opts.Session, Started: e.opts.Now()}
	e.log.Info("Starting Concurrent Advanced Cleanup...",
		zap.String("session", sum.Session), zap.Strings("steps", e.Steps()))

	if err := e.mon.Start(); err != nil {
		return sum, err
	}

	ctx, span := e.opts.Tracer.Start(ctx, "core.Run",
		trace.WithAttributes(attribute.String("session", sum.Session)))
	defer span.End()

	var (
		wg     sync.WaitGroup
		errMu  sync.Mutex
		result error
	)
	for _, s := range e.steps {
		wg.Add(1)
		go func(s cleanup.Step) {
			defer wg.Done()
			if err := e.runStep(ctx, s); err != nil {
				errMu.Lock()
				result = multierror.Append(result, cerr.Wrapf(err, "step %s", s.Name()))
				errMu.Unlock()
			}
		}(s)
	}
	wg.Wait()

	// Every producer has returned; Close drains what is still buffered.
	e.mon.Close()
	sum.Finished = e.opts.Now()

	records := e.mon.Snapshot()
	sum.Records = len(records)
	sum.Counts = make(map[action.Kind]int)
	for _, r := range records {
		sum.Counts[r.Action.Kind]++
	}

	if err := e.persist(ctx, &sum, records); err != nil {
		result = multierror.Append(result, err)
	}

	if result != nil {
		span.RecordError(result)
		span.SetStatus(codes.Error, "cleanup finished with errors")
	}
	e.log.Info("Cleanup finished",
		zap.Int("records", sum.Records),
		zap.Int("failures", sum.Failures()),
		zap.Duration("took", sum.Finished.Sub(sum.Started)))
	return sum, result
}

func (e *Engine) runStep(ctx context.Context, s cleanup.Step) error {
	ctx, span := e.opts.Tracer.Start(ctx, "step."+s.Name())
	defer span.End()

	log := e.log.With(zap.String("step", s.Name()))
	log.Debug("Step started")
	if err := s.Run(ctx, e.mon); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("Step failed", zap.Error(err))
		return err
	}
	log.Debug("Step completed")
	return nil
}

// persist writes the JSON snapshot, then the markdown report and mail. A
// report or mail failure is logged and returned but never undoes the JSON.
func (e *Engine) persist(ctx context.Context, sum *Summary, records []action.Record) error {
	path, err := e.mon.WriteJSON(e.opts.ReportDir, e.opts.Prefix)
	if err != nil {
		e.log.Error("Failed to save action log", zap.Error(err))
		return cerr.Wrap(err, "save action log")
	}
	sum.JSONPath = path

	if !e.opts.Markdown && e.opts.Mailer == nil {
		return nil
	}

	data := report.Data{
		Session:  sum.Session,
		Started:  sum.Started,
		Finished: sum.Finished,
		Host:     e.opts.Host(ctx),
		Records:  records,
		JSONPath: path,
	}

	var (
		body   string
		result error
	)
	if e.opts.Markdown {
		mdPath := strings.TrimSuffix(path, ".json") + ".md"
		if body, err = report.WriteMarkdown(mdPath, data); err != nil {
			e.log.Error("Failed to write report", zap.Error(err))
			result = multierror.Append(result, err)
		} else {
			sum.MarkdownPath = mdPath
			e.log.Info("Report written", zap.String("path", mdPath))
		}
	} else if body, err = report.Render(data); err != nil {
		return err
	}

	if e.opts.Mailer != nil && body != "" {
		subject := fmt.Sprintf("Cleanup report %s: %d actions, %d failures",
			sum.Session, sum.Records, sum.Failures())
		if err := e.opts.Mailer.Send(subject, body); err != nil {
			e.log.Error("Failed to mail report", zap.Error(err))
			result = multierror.Append(result, err)
		}
	}
	return result
}
