package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"time"
	diffimage "visual-diff/internal/diff/image"
	"visual-diff/internal/retry"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

type Pair struct {
	Baseline string `json:"baseline"`
	Test     string `json:"test"`
}

// Outcome is the report entry for one pair. Result is set unless the
// comparison failed outright; Error is set whenever it did not succeed.
type Outcome struct {
	Pair
	Result *diffimage.ComparisonResult `json:"result,omitempty"`
	Error  string                      `json:"error,omitempty"`
}

type Comparer interface {
	Compare(ctx context.Context, baselinePath string, testPath string) (*diffimage.ComparisonResult, error)
}

// ReadPairs reads a JSON array of pairs from path.
func ReadPairs(path string) ([]Pair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to read pairs: %w", err)
	}

	var pairs []Pair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, xerrors.Errorf("failed to parse pairs: %w", err)
	}
	for i, pair := range pairs {
		if pair.Baseline == "" || pair.Test == "" {
			return nil, xerrors.Errorf("pair %d: baseline and test are required", i)
		}
	}
	return pairs, nil
}

type Runner struct {
	Comparer    Comparer
	Concurrency int
	Logger      *slog.Logger
}

// Run compares every pair with at most Concurrency comparisons in flight.
// Outcomes keep the order of pairs. A failed pair never stops the others;
// only cancellation of ctx does.
func (r *Runner) Run(ctx context.Context, pairs []Pair) ([]Outcome, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	concurrency := r.Concurrency
	if concurrency < 1 {
		// Use GOMAXPROCS instead of runtime.NumCPU() to consider cgroup.
		concurrency = runtime.GOMAXPROCS(0)
	}

	outcomes := make([]Outcome, len(pairs))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)
	for i, pair := range pairs {
		if egCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}

			result, err := r.Comparer.Compare(egCtx, pair.Baseline, pair.Test)
			outcomes[i] = Outcome{
				Pair:   pair,
				Result: result,
			}
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				logger.Warn("comparison failed", "baseline", pair.Baseline, "test", pair.Test, "error", err)
				outcomes[i].Error = err.Error()
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, xerrors.Errorf("failed to run comparisons: %w", err)
	}
	// The loop may have stopped early without any goroutine observing it.
	if err := ctx.Err(); err != nil {
		return nil, xerrors.Errorf("failed to run comparisons: %w", err)
	}

	return outcomes, nil
}

// Callback PATCHes the JSON report to callbackURL, retrying transient
// failures with exponential backoff.
func Callback(ctx context.Context, client *http.Client, callbackURL string, data []byte) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodPatch, callbackURL, bytes.NewReader(data))
	if err != nil {
		return xerrors.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := client.Do(request)
	if err != nil {
		return xerrors.Errorf("failed to send request: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode >= 300 {
		return xerrors.Errorf("callback returned %s", response.Status)
	}
	return nil
}

// NewCallbackClient returns the client Callback is meant to be used with.
func NewCallbackClient(logger *slog.Logger) *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second, // covers all attempts; retry.Transport has no per-try timeout
		Transport: &retry.Transport{
			Base:     http.DefaultTransport,
			Strategy: retry.NewExponentialBackOff(10*time.Millisecond, 1*time.Second, 3, nil),
			Policy:   retry.NewDefaultPolicy(),
			Logger:   logger,
		},
	}
}
