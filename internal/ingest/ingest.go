// Package ingest turns a repository source into a searchable vector index.
package ingest

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"

	"repochat/internal/chunking"
	"repochat/internal/config"
	"repochat/internal/embedding"
	"repochat/internal/errors"
	"repochat/internal/fetch"
	"repochat/internal/vectorindex"
	"repochat/internal/workspace"
)

// Options controls walking and embedding.
type Options struct {
	WorkDir      string
	MaxFileBytes int64
	Ignore       []string
	BatchSize    int
	Concurrency  int
}

// OptionsFromConfig converts the ingest section of the config.
func OptionsFromConfig(c config.IngestConfig) Options {
	return Options{
		WorkDir:      c.WorkDir,
		MaxFileBytes: c.MaxFileBytes,
		Ignore:       c.Ignore,
		BatchSize:    c.EmbedBatchSize,
		Concurrency:  c.EmbedConcurrency,
	}
}

// Skipped records a file left out of the index.
type Skipped struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Report summarizes one ingestion.
type Report struct {
	Source    string        `json:"source"`
	Files     int           `json:"files"`
	Fragments int           `json:"fragments"`
	Skipped   []Skipped     `json:"skipped,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Warnings renders skipped files as human-readable lines.
func (r *Report) Warnings() []string {
	out := make([]string, 0, len(r.Skipped))
	for _, s := range r.Skipped {
		out = append(out, fmt.Sprintf("skipped %s: %s", s.Path, s.Reason))
	}
	return out
}

// ProgressFunc receives coarse progress in percent.
type ProgressFunc func(percent int, stage string)

// Ingestor fetches, chunks and embeds repositories.
type Ingestor struct {
	fetcher  fetch.Fetcher
	strategy *chunking.Strategy
	embedder embedding.Embedder
	opts     Options
	ignore   []glob.Glob
	logger   *slog.Logger
}

// New creates an Ingestor. Ignore patterns use '/' as the separator and are
// matched against slash-separated paths relative to the repository root.
func New(f fetch.Fetcher, s *chunking.Strategy, e embedding.Embedder, opts Options, logger *slog.Logger) (*Ingestor, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	in := &Ingestor{fetcher: f, strategy: s, embedder: e, opts: opts, logger: logger}
	for _, p := range opts.Ignore {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", p, err)
		}
		in.ignore = append(in.ignore, g)
	}
	return in, nil
}

// Ingest builds an index for source.
func (in *Ingestor) Ingest(ctx context.Context, source string) (*vectorindex.Index, *Report, error) {
	return in.IngestWithProgress(ctx, source, nil)
}

// IngestWithProgress is Ingest with progress reporting. The temporary checkout is
// removed on every return path.
func (in *Ingestor) IngestWithProgress(ctx context.Context, source string, progress ProgressFunc) (*vectorindex.Index, *Report, error) {
	if progress == nil {
		progress = func(int, string) {}
	}
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, nil, errors.New(errors.InvalidInput, "repository source is required")
	}

	start := time.Now()
	report := &Report{Source: source}

	ws, err := workspace.Acquire(in.opts.WorkDir, "repochat-", in.logger)
	if err != nil {
		return nil, nil, err
	}
	defer ws.ReleaseLogged()

	root := filepath.Join(ws.Path, "repo")
	progress(5, "fetching")
	if err := in.fetcher.Fetch(ctx, source, root); err != nil {
		return nil, nil, err
	}

	progress(20, "chunking")
	fragments, err := in.collect(ctx, root, report)
	if err != nil {
		return nil, nil, err
	}
	if len(fragments) == 0 {
		return nil, nil, errors.New(errors.IngestionEmpty, "repository produced no fragments").
			WithDetails("source", source).
			WithDetails("skipped", len(report.Skipped))
	}

	progress(30, "embedding")
	if err := in.embed(ctx, fragments, func(done int) {
		progress(30+65*done/len(fragments), "embedding")
	}); err != nil {
		return nil, nil, err
	}

	idx, err := vectorindex.Build(fragments)
	if err != nil {
		return nil, nil, errors.Wrap(errors.InternalError, "failed to build index", err)
	}

	report.Fragments = len(fragments)
	report.Duration = time.Since(start)
	progress(100, "done")

	in.logger.Info("Ingested repository",
		"source", source,
		"files", report.Files,
		"fragments", report.Fragments,
		"skipped", len(report.Skipped),
		"duration", report.Duration.Round(time.Millisecond),
	)
	return idx, report, nil
}

func (in *Ingestor) ignored(rel string, dir bool) bool {
	candidates := []string{rel, "/" + rel}
	if dir {
		candidates = []string{rel + "/", "/" + rel + "/"}
	}
	for _, g := range in.ignore {
		for _, c := range candidates {
			if g.Match(c) {
				return true
			}
		}
	}
	return false
}

// collect walks root and chunks every text file in lexical order.
func (in *Ingestor) collect(ctx context.Context, root string, report *Report) ([]chunking.Fragment, error) {
	var fragments []chunking.Fragment
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			report.Skipped = append(report.Skipped, Skipped{Path: rel, Reason: walkErr.Error()})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && (d.Name() == ".git" || in.ignored(rel, true)) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || in.ignored(rel, false) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			report.Skipped = append(report.Skipped, Skipped{Path: rel, Reason: err.Error()})
			return nil
		}
		if in.opts.MaxFileBytes > 0 && info.Size() > in.opts.MaxFileBytes {
			report.Skipped = append(report.Skipped, Skipped{Path: rel, Reason: "file too large"})
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			report.Skipped = append(report.Skipped, Skipped{Path: rel, Reason: err.Error()})
			return nil
		}
		frags, err := in.strategy.SplitFile(rel, data)
		if stderrors.Is(err, chunking.ErrNotText) {
			in.logger.Warn("Skipping non-text file", "path", rel)
			report.Skipped = append(report.Skipped, Skipped{Path: rel, Reason: "binary or non-UTF-8 content"})
			return nil
		}
		if err != nil {
			return err
		}
		if len(frags) > 0 {
			report.Files++
			fragments = append(fragments, frags...)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(errors.InternalError, "failed to walk repository", err)
	}
	return fragments, nil
}

// embed fills in every fragment's embedding. Batches run concurrently; the
// first failure cancels the rest.
func (in *Ingestor) embed(ctx context.Context, fragments []chunking.Fragment, onBatch func(done int)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.opts.Concurrency)

	done := make(chan int)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		total := 0
		for n := range done {
			total += n
			onBatch(total)
		}
	}()

	for start := 0; start < len(fragments); start += in.opts.BatchSize {
		end := min(start+in.opts.BatchSize, len(fragments))
		batch := fragments[start:end]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, f := range batch {
				texts[i] = f.Text
			}
			vecs, err := in.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return err
			}
			if len(vecs) != len(batch) {
				return fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(batch))
			}
			for i := range batch {
				batch[i].Embedding = vecs[i]
			}
			done <- len(batch)
			return nil
		})
	}
	err := g.Wait()
	close(done)
	<-finished

	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.CodeOf(err) == errors.InternalError {
		return errors.Wrap(errors.ExternalServiceError, "embedding failed", err).WithDetails("embedder", in.embedder.Name())
	}
	return err
}
