package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/desertthunder/spotx/internal/formatter"
	"github.com/desertthunder/spotx/internal/urls"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// BatchItem is one url submitted to [Downloader.Batch].
type BatchItem struct {
	URL  string
	Name string
}

// BatchOpts contains configuration for batch downloads.
type BatchOpts struct {
	Format     string  // Manifest format: json or yaml
	OutputDir  string  // Manifest directory (default: spotx_batch_{epoch})
	NumWorkers int     // Concurrent downloads (default: 3, max 10)
	RateLimit  float64 // Submissions per second (default: 2)
}

// BatchItemResult is the outcome of one batch item.
type BatchItemResult struct {
	URL     string
	Key     string
	Name    string
	Success bool
	Error   error
	Elapsed time.Duration
}

// BatchResult summarizes a batch run.
type BatchResult struct {
	Total           int
	Successful      int
	Failed          int
	OutputDirectory string
	ManifestPath    string
	Results         []BatchItemResult
}

// Batch downloads items as background tasks with a bounded worker pool and a submission rate limit,
// then writes a manifest summarizing the run.
//
// Unsupported urls fail without being submitted. Canceling ctx cancels the tasks still running.
func (d *Downloader) Batch(ctx context.Context, prog chan<- ProgressUpdate, items []BatchItem, opts BatchOpts) (*BatchResult, error) {
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("spotx_batch_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 3
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2.0
	}
	if opts.Format == "" {
		opts.Format = "json"
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	total := len(items)
	result := &BatchResult{
		Total:           total,
		OutputDirectory: opts.OutputDir,
		Results:         make([]BatchItemResult, 0, total),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan BatchItem, total)
	results := make(chan BatchItemResult, total)

	var g errgroup.Group
	for i := 0; i < opts.NumWorkers; i++ {
		g.Go(func() error {
			for item := range jobs {
				results <- d.batchItem(ctx, item)
			}
			return nil
		})
	}

	go func() {
		defer close(jobs)
		for i, item := range items {
			item.URL = urls.Normalize(item.URL)
			if item.Name == "" {
				item.Name = item.URL
			}
			if !urls.IsSupported(item.URL) {
				err := fmt.Errorf("unsupported url: %q", item.URL)
				sendProgress(prog, rejectedUpdate(i+1, total, item.URL, err))
				results <- BatchItemResult{URL: item.URL, Key: TaskKey(item.URL), Name: item.Name, Error: err}
				continue
			}
			if err := limiter.Wait(ctx); err != nil {
				for _, rest := range items[i:] {
					results <- BatchItemResult{URL: rest.URL, Key: TaskKey(rest.URL), Name: rest.URL, Error: err}
				}
				return
			}
			jobs <- item
			sendProgress(prog, submittingUpdate(i+1, total, item.URL))
		}
	}()

	go func() {
		_ = g.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)
		if res.Success {
			result.Successful++
			sendProgress(prog, itemCompletedUpdate(completed, total, res))
		} else {
			result.Failed++
			sendProgress(prog, itemFailedUpdate(completed, total, res))
		}
	}

	ext := ".json"
	if opts.Format == "yaml" {
		ext = ".yaml"
	}
	manifestPath := filepath.Join(opts.OutputDir, "batch_manifest"+ext)
	if err := formatter.WriteBatchManifest(result.Manifest(opts.Format), manifestPath); err != nil {
		return result, fmt.Errorf("batch completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	sendProgress(prog, manifestUpdate(manifestPath))
	return result, nil
}

func (d *Downloader) batchItem(ctx context.Context, item BatchItem) BatchItemResult {
	start := time.Now()
	res := BatchItemResult{URL: item.URL, Key: TaskKey(item.URL), Name: item.Name}
	if err := ctx.Err(); err != nil {
		res.Error = err
		return res
	}

	job := d.ExecuteParallelDownloadWithURL(item.URL, item.Name)
	err := job.Wait(ctx)
	if ctx.Err() != nil {
		_ = d.CancelTask(res.Key)
		<-job.Done()
		err = job.Err()
		if err == nil {
			err = ctx.Err()
		}
	}

	res.Elapsed = time.Since(start)
	res.Error = err
	res.Success = err == nil
	return res
}

// Manifest converts the result into the manifest written next to the downloads.
func (r *BatchResult) Manifest(format string) formatter.BatchManifest {
	m := formatter.BatchManifest{
		Format:          format,
		CreatedAt:       time.Now().UTC(),
		Total:           r.Total,
		Successful:      r.Successful,
		Failed:          r.Failed,
		OutputDirectory: r.OutputDirectory,
		Items:           make([]formatter.ManifestItem, 0, len(r.Results)),
	}
	for _, res := range r.Results {
		item := formatter.ManifestItem{
			URL:     res.URL,
			Key:     res.Key,
			Name:    res.Name,
			Status:  "success",
			Elapsed: res.Elapsed.Round(time.Millisecond).String(),
		}
		if !res.Success {
			item.Status = "failed"
			if res.Error != nil {
				item.Error = res.Error.Error()
			}
		}
		m.Items = append(m.Items, item)
	}
	return m
}
