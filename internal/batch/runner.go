// File path: internal/batch/runner.go
package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nicodishanthj/Katral_copybook/internal/archive"
	"github.com/nicodishanthj/Katral_copybook/internal/catalog"
	"github.com/nicodishanthj/Katral_copybook/internal/common"
	"github.com/nicodishanthj/Katral_copybook/internal/common/telemetry"
	"github.com/nicodishanthj/Katral_copybook/internal/copybook"
	"github.com/nicodishanthj/Katral_copybook/internal/framer"
)

const (
	defaultWorkers   = 4
	archiveBatchSize = 256
)

// ErrFailFast is returned when a run stops at its first failed record.
var ErrFailFast = errors.New("batch: stopped at first failed record")

// Source yields framed records until io.EOF. *framer.Reader satisfies it.
type Source interface {
	Next() (framer.Record, error)
}

// RunRecorder stores finished runs. *catalog.Store satisfies it.
type RunRecorder interface {
	RecordRun(ctx context.Context, run catalog.Run) (*catalog.Run, error)
}

// Archiver keeps decoded entries. *archive.Store satisfies it.
type Archiver interface {
	AppendRecords(ctx context.Context, name string, entries []archive.Entry) error
}

// Summary describes a finished run.
type Summary struct {
	RunID    string        `json:"run_id"`
	Records  int           `json:"records"`
	Failures int           `json:"failures"`
	Status   string        `json:"status"`
	Duration time.Duration `json:"duration"`
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers sets the number of decoding goroutines.
func WithWorkers(n int) Option {
	return func(r *Runner) { r.workers = n }
}

// WithFailFast stops the run at the first record that fails to decode.
func WithFailFast(enabled bool) Option {
	return func(r *Runner) { r.failFast = enabled }
}

// WithRunRecorder records the run under copybook once it finishes.
func WithRunRecorder(runs RunRecorder, copybook, input string) Option {
	return func(r *Runner) {
		r.runs = runs
		r.copybook = copybook
		r.input = input
	}
}

// WithArchive appends every emitted entry to the archive under name.
func WithArchive(store Archiver, name string) Option {
	return func(r *Runner) {
		r.archive = store
		r.archiveName = name
	}
}

// Runner decodes a stream of records against one layout. The decoder is
// shared by all workers and never mutated.
type Runner struct {
	decoder     *copybook.Decoder
	workers     int
	failFast    bool
	runs        RunRecorder
	copybook    string
	input       string
	archive     Archiver
	archiveName string
}

// New creates a runner around decoder.
func New(decoder *copybook.Decoder, opts ...Option) (*Runner, error) {
	if decoder == nil {
		return nil, errors.New("batch: decoder required")
	}
	r := &Runner{decoder: decoder, workers: defaultWorkers}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.workers <= 0 {
		r.workers = defaultWorkers
	}
	return r, nil
}

type job struct {
	index int
	data  []byte
	err   error
}

type result struct {
	entry archive.Entry
}

// Run decodes every record of src and writes one JSON line per record to out
// in input order. A record that fails is reported in its line and the run
// continues unless fail-fast is set. Framing errors other than a short
// trailing record abort the run after the records already read are written.
func (r *Runner) Run(ctx context.Context, src Source, out io.Writer) (Summary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ctx, endSpan := telemetry.StartSpan(ctx, "batch.run")

	summary := Summary{RunID: uuid.NewString()}
	started := time.Now()
	logger := common.Logger().With("run", summary.RunID)
	logger.Info("batch: run started", "workers", r.workers, "fail_fast", r.failFast, "copybook", r.copybook)

	jobs := make(chan job)
	results := make(chan result, r.workers)
	window := make(chan struct{}, r.workers*4)
	var readErr error

	go func() {
		defer close(jobs)
		for {
			rec, err := src.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			j := job{index: rec.Index, data: rec.Data}
			if err != nil {
				var short *framer.ShortRecordError
				if !errors.As(err, &short) {
					readErr = err
					return
				}
				j = job{index: short.Index, err: short}
			}
			select {
			case window <- struct{}{}:
			case <-ctx.Done():
				return
			}
			select {
			case jobs <- j:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results <- r.decode(j, summary.RunID)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)
	var (
		pending  = make(map[int]result)
		next     int
		stopErr  error
		archived []archive.Entry
	)
	flushArchive := func() {
		if r.archive == nil || len(archived) == 0 || stopErr != nil {
			archived = archived[:0]
			return
		}
		if err := r.archive.AppendRecords(ctx, r.archiveName, archived); err != nil {
			stopErr = fmt.Errorf("batch: archive: %w", err)
			cancel()
		}
		archived = archived[:0]
	}
	emit := func(res result) {
		<-window
		if stopErr != nil {
			return
		}
		if err := parent.Err(); err != nil {
			stopErr = err
			return
		}
		if err := enc.Encode(res.entry); err != nil {
			stopErr = fmt.Errorf("batch: write record %d: %w", res.entry.Record, err)
			cancel()
			return
		}
		summary.Records++
		if res.entry.Failed() {
			summary.Failures++
		}
		if r.archive != nil {
			archived = append(archived, res.entry)
			if len(archived) >= archiveBatchSize {
				flushArchive()
			}
		}
		if r.failFast && res.entry.Failed() {
			stopErr = fmt.Errorf("%w: record %d", ErrFailFast, res.entry.Record)
			cancel()
		}
	}
	for res := range results {
		pending[res.entry.Record] = res
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			emit(ready)
		}
	}
	flushArchive()
	if err := w.Flush(); err != nil && stopErr == nil {
		stopErr = fmt.Errorf("batch: flush output: %w", err)
	}
	if stopErr == nil && readErr != nil {
		stopErr = fmt.Errorf("batch: read input: %w", readErr)
	}
	if stopErr == nil && parent.Err() != nil {
		stopErr = parent.Err()
	}

	summary.Duration = time.Since(started)
	summary.Status = runStatus(summary, stopErr)
	telemetry.RecordRun(summary.Status)
	endSpan("records", summary.Records, "failures", summary.Failures)
	r.record(parent, summary, started)

	if stopErr != nil {
		logger.Warn("batch: run stopped", "status", summary.Status, "records", summary.Records, "failures", summary.Failures, "error", stopErr)
	} else {
		logger.Info("batch: run finished", "status", summary.Status, "records", summary.Records, "failures", summary.Failures, "dur", summary.Duration)
	}
	return summary, stopErr
}

func (r *Runner) decode(j job, runID string) result {
	start := time.Now()
	var (
		rec *copybook.DecodedRecord
		err = j.err
	)
	if err == nil {
		rec, err = r.decoder.Decode(j.data)
	}
	entry := archive.NewEntry(j.index, rec, err)
	entry.RunID = runID
	telemetry.RecordDecode(time.Since(start), failureCodes(rec, err)...)
	return result{entry: entry}
}

func failureCodes(rec *copybook.DecodedRecord, err error) []string {
	if err == nil {
		return nil
	}
	if errors.Is(err, framer.ErrShortRecord) {
		return []string{"ShortRecord"}
	}
	if rec == nil {
		if code, ok := copybook.CodeOf(err); ok {
			return []string{string(code)}
		}
		return []string{"unknown"}
	}
	var codes []string
	for _, f := range rec.Fields() {
		if f.Err == nil {
			continue
		}
		if code, ok := copybook.CodeOf(f.Err); ok {
			codes = append(codes, string(code))
		}
	}
	if len(codes) == 0 {
		codes = append(codes, "unknown")
	}
	return codes
}

func runStatus(s Summary, err error) string {
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return catalog.RunCancelled
	case err != nil:
		return catalog.RunFailed
	case s.Failures == 0:
		return catalog.RunSucceeded
	case s.Failures == s.Records:
		return catalog.RunFailed
	default:
		return catalog.RunPartial
	}
}

func (r *Runner) record(ctx context.Context, s Summary, started time.Time) {
	if r.runs == nil || r.copybook == "" {
		return
	}
	_, err := r.runs.RecordRun(context.WithoutCancel(ctx), catalog.Run{
		ID:         s.RunID,
		Copybook:   r.copybook,
		Input:      r.input,
		Records:    s.Records,
		Failures:   s.Failures,
		Status:     s.Status,
		StartedAt:  started,
		FinishedAt: started.Add(s.Duration),
	})
	if err != nil {
		common.Logger().Warn("batch: record run failed", "run", s.RunID, "error", err)
	}
}
