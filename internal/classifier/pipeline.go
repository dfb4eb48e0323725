package classifier

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/followwatch/internal/metrics"
)

// DefaultConcurrency is the worker count used when none is configured.
const DefaultConcurrency = 4

// Classifier answers whether the image at imageURL contains the target subject.
type Classifier interface {
	Classify(ctx context.Context, imageURL string) (bool, error)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, imageURL string) (bool, error)

// Classify implements Classifier.
func (f ClassifierFunc) Classify(ctx context.Context, imageURL string) (bool, error) {
	return f(ctx, imageURL)
}

// Pipeline classifies batches of images with bounded concurrency.
type Pipeline struct {
	classifier  Classifier
	limit       int
	callTimeout time.Duration
	logger      *zap.Logger
}

// NewPipeline builds a Pipeline. A non-positive limit falls back to DefaultConcurrency;
// a non-positive callTimeout disables the per-call deadline.
func NewPipeline(c Classifier, limit int, callTimeout time.Duration, logger *zap.Logger) *Pipeline {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		classifier:  c,
		limit:       limit,
		callTimeout: callTimeout,
		logger:      logger.Named("classifier"),
	}
}

// Limit reports the concurrency cap.
func (p *Pipeline) Limit() int {
	return p.limit
}

// Run classifies every distinct URL exactly once and returns the positives.
// Exactly Limit workers pull from a shared cursor; the result order is unspecified.
// Once ctx is done no further classification starts and the positives found so far are returned.
func (p *Pipeline) Run(ctx context.Context, urls []string) []string {
	items := dedupe(urls)
	if len(items) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	var (
		cursor  atomic.Int64
		mu      sync.Mutex
		matches []string
	)
	for w := 0; w < p.limit; w++ {
		g.Go(func() error {
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				i := int(cursor.Add(1) - 1)
				if i >= len(items) {
					return nil
				}
				if p.classify(gctx, items[i]) {
					mu.Lock()
					matches = append(matches, items[i])
					mu.Unlock()
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		p.logger.Warn("classification interrupted",
			zap.Int("matched", len(matches)),
			zap.Int("total", len(items)),
			zap.Error(err))
	}
	return matches
}

func (p *Pipeline) classify(ctx context.Context, imageURL string) (matched bool) {
	metrics.IncClassifierInflight()
	defer metrics.DecClassifierInflight()

	defer func() {
		if r := recover(); r != nil {
			p.fail(imageURL, fmt.Errorf("classifier panic: %v", r))
			matched = false
		}
	}()

	callCtx := ctx
	if p.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.callTimeout)
		defer cancel()
	}

	ok, err := p.classifier.Classify(callCtx, imageURL)
	if err != nil {
		p.fail(imageURL, err)
		return false
	}
	if ok {
		metrics.ObserveClassification("positive")
	} else {
		metrics.ObserveClassification("negative")
	}
	return ok
}

func (p *Pipeline) fail(imageURL string, err error) {
	metrics.ObserveClassification("failed")
	p.logger.Warn("image classification failed; treating as negative",
		zap.String("image", imageURL),
		zap.Error(err))
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
