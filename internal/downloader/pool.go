package downloader

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"instarchive/pkg/logger"
)

// Job is one media file to fetch into Path
type Job struct {
	URL  string
	Path string
	// ModTime, when set, is stamped on the written file
	ModTime time.Time
}

// Result is the outcome of one job
type Result struct {
	Job      Job
	Skipped  bool
	Size     int
	Duration time.Duration
	Err      error
}

// Source fetches media bytes
type Source interface {
	Download(url string) ([]byte, time.Time, error)
}

// WriteFunc stores fetched bytes at path
type WriteFunc func(path string, data []byte, modified time.Time) error

// Pool fetches batches of media files with a bounded number of workers
type Pool struct {
	workers int
	source  Source
	write   WriteFunc
	logger  logger.Logger
}

// NewPool creates a Pool. workers below 1 means one worker.
func NewPool(workers int, source Source, write WriteFunc, log logger.Logger) *Pool {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Pool{
		workers: max(workers, 1),
		source:  source,
		write:   write,
		logger:  log,
	}
}

// Workers returns the concurrency limit
func (p *Pool) Workers() int {
	return p.workers
}

// Run fetches every job whose Path does not exist yet. The first failure
// cancels jobs that have not started and is returned; results are in job
// order either way.
func (p *Pool) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	results := make([]Result, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, job := range jobs {
		g.Go(func() error {
			results[i] = p.process(gctx, job)
			return results[i].Err
		})
	}

	err := g.Wait()
	return results, err
}

func (p *Pool) process(ctx context.Context, job Job) Result {
	start := time.Now()
	result := Result{Job: job}

	if err := ctx.Err(); err != nil {
		result.Err = err
		return result
	}

	if _, err := os.Stat(job.Path); err == nil {
		result.Skipped = true
		return result
	} else if !errors.Is(err, fs.ErrNotExist) {
		result.Err = err
		return result
	}

	data, modified, err := p.source.Download(job.URL)
	if err != nil {
		result.Err = err
		result.Duration = time.Since(start)
		p.logger.WithError(err).WarnWithFields("Media download failed", map[string]interface{}{
			"path": job.Path,
		})
		return result
	}
	result.Size = len(data)

	if !job.ModTime.IsZero() {
		modified = job.ModTime
	}
	if err := p.write(job.Path, data, modified); err != nil {
		result.Err = err
		result.Duration = time.Since(start)
		return result
	}

	result.Duration = time.Since(start)
	p.logger.DebugWithFields("Media saved", map[string]interface{}{
		"path":     job.Path,
		"size":     result.Size,
		"duration": result.Duration,
	})
	return result
}
