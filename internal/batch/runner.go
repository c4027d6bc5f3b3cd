// Package batch converts every message in a directory (or mbox archive)
// into an EmailRecord using a pool of workers.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felo/cargo-eml-prompts/internal/parser"
	"github.com/felo/cargo-eml-prompts/internal/record"
	"github.com/felo/cargo-eml-prompts/internal/scanner"
)

// Runner converts message files into records
type Runner struct {
	logger      *slog.Logger
	concurrency int // Number of concurrent workers
	recursive   bool
	fileTimeout time.Duration
}

// New creates a runner that logs per-file problems to logger
func New(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		logger:      logger,
		concurrency: runtime.NumCPU() * 2, // 2x CPUs for I/O parallelism
	}
}

// WithConcurrency sets the number of concurrent workers
func (r *Runner) WithConcurrency(workers int) *Runner {
	if workers < 1 {
		workers = 1
	}
	r.concurrency = workers
	return r
}

// WithRecursive makes Run descend into subdirectories
func (r *Runner) WithRecursive(recursive bool) *Runner {
	r.recursive = recursive
	return r
}

// WithFileTimeout bounds the time spent on a single message. Zero disables it.
func (r *Runner) WithFileTimeout(d time.Duration) *Runner {
	r.fileTimeout = d
	return r
}

// job is one message to convert. load returns its raw bytes.
type job struct {
	index int
	name  string
	load  func() ([]byte, error)
}

type jobResult struct {
	index  int
	name   string
	record record.EmailRecord
	size   int64
	err    error
}

// Run converts every .eml file in dir. Per-file failures never abort the
// batch: they are counted in Total and listed in Skipped. The returned
// error is non-nil only when dir cannot be read or ctx is canceled.
func (r *Runner) Run(ctx context.Context, dir string) (*Result, error) {
	return r.RunWithProgress(ctx, dir, nil)
}

// RunWithProgress is Run with a callback invoked after each file completes
func (r *Runner) RunWithProgress(ctx context.Context, dir string, progress func(current, total int, filename string)) (*Result, error) {
	scan := scanner.NewScanner(dir).WithRecursive(r.recursive)
	files, err := scan.Scan()
	if err != nil {
		return nil, fmt.Errorf("failed to scan for files: %w", err)
	}

	jobs := make([]job, len(files))
	for i, rel := range files {
		fullPath := scan.Path(rel)
		jobs[i] = job{
			index: i,
			name:  path.Base(rel),
			load:  func() ([]byte, error) { return os.ReadFile(fullPath) },
		}
	}

	r.logger.Info("found message files", "dir", dir, "files", len(jobs), "workers", r.concurrency)
	return r.process(ctx, dir, jobs, progress)
}

// RunMbox converts every message of an mbox archive. Records are named
// "<archive>#<n>".
func (r *Runner) RunMbox(ctx context.Context, mboxPath string) (*Result, error) {
	base := filepath.Base(mboxPath)
	var jobs []job
	err := scanner.ReadMbox(mboxPath, func(index int, raw []byte) error {
		jobs = append(jobs, job{
			index: index - 1,
			name:  fmt.Sprintf("%s#%d", base, index),
			load:  func() ([]byte, error) { return raw, nil },
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("found mbox messages", "mbox", mboxPath, "messages", len(jobs), "workers", r.concurrency)
	return r.process(ctx, mboxPath, jobs, nil)
}

// process runs jobs through the worker pool and merges the outcomes in
// job order, so the result does not depend on worker scheduling
func (r *Runner) process(ctx context.Context, source string, jobs []job, progress func(current, total int, filename string)) (*Result, error) {
	result := &Result{
		RunID:     uuid.NewString(),
		Source:    source,
		StartedAt: time.Now().UTC(),
		Total:     len(jobs),
		Records:   make([]record.EmailRecord, 0, len(jobs)),
		Skipped:   make([]Skipped, 0),
	}

	jobChan := make(chan job, len(jobs))
	resultChan := make(chan jobResult, len(jobs))

	// Start worker pool
	var wg sync.WaitGroup
	for i := 0; i < r.concurrency; i++ {
		wg.Add(1)
		go r.worker(ctx, &wg, jobChan, resultChan)
	}

	for _, j := range jobs {
		jobChan <- j
	}
	close(jobChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	// Single writer: only this goroutine touches the outcome slice
	outcomes := make([]jobResult, len(jobs))
	done := 0
	for res := range resultChan {
		done++
		outcomes[res.index] = res
		if progress != nil {
			progress(done, result.Total, res.name)
		}
	}

	for _, res := range outcomes {
		result.Bytes += res.size
		if res.err != nil {
			r.logger.Warn("skipped message", "file", res.name, "malformed", parser.IsMalformed(res.err), "error", res.err)
			result.Skipped = append(result.Skipped, Skipped{Filename: res.name, Reason: res.err.Error()})
			continue
		}
		result.Records = append(result.Records, res.record)
	}
	result.Processed = len(result.Records)
	result.FinishedAt = time.Now().UTC()

	r.logger.Info("batch complete", result.LogAttrs()...)

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("batch interrupted: %w", err)
	}
	return result, nil
}

// worker converts jobs from the job channel
func (r *Runner) worker(ctx context.Context, wg *sync.WaitGroup, jobChan <-chan job, resultChan chan<- jobResult) {
	defer wg.Done()

	for j := range jobChan {
		res := jobResult{index: j.index, name: j.name}
		if err := ctx.Err(); err != nil {
			res.err = err
		} else {
			res.record, res.size, res.err = r.convert(ctx, j)
		}
		resultChan <- res
	}
}

// convert runs decode, extract, collect and assemble for one job, bounded
// by the file timeout when one is set
func (r *Runner) convert(ctx context.Context, j job) (record.EmailRecord, int64, error) {
	if r.fileTimeout <= 0 {
		return r.convertJob(j)
	}

	ctx, cancel := context.WithTimeout(ctx, r.fileTimeout)
	defer cancel()

	type outcome struct {
		rec  record.EmailRecord
		size int64
		err  error
	}
	ch := make(chan outcome, 1)
	go func() {
		rec, size, err := r.convertJob(j)
		ch <- outcome{rec, size, err}
	}()

	select {
	case <-ctx.Done():
		return record.EmailRecord{}, 0, fmt.Errorf("conversion timed out: %w", ctx.Err())
	case o := <-ch:
		return o.rec, o.size, o.err
	}
}

func (r *Runner) convertJob(j job) (record.EmailRecord, int64, error) {
	raw, err := j.load()
	if err != nil {
		return record.EmailRecord{}, 0, fmt.Errorf("failed to read message: %w", err)
	}

	msg, err := parser.Decode(raw)
	if err != nil {
		return record.EmailRecord{}, int64(len(raw)), err
	}
	for _, w := range msg.Warnings {
		r.logger.Debug("decode warning", "file", j.name, "warning", w)
	}

	return record.FromMessage(j.name, msg), msg.Size, nil
}
