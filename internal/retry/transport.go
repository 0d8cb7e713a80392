package retry

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/xerrors"
)

// Transport retries requests according to Policy, waiting between attempts
// as Strategy dictates. Requests with a body are only retried when GetBody is
// set, which http.NewRequest does for in-memory bodies.
type Transport struct {
	Base     http.RoundTripper
	Strategy Strategy
	Policy   *Policy
	Logger   *slog.Logger
}

func (t *Transport) RoundTrip(request *http.Request) (*http.Response, error) {
	ctx := request.Context()
	attempt := request

	for retryCount := uint(0); ; retryCount++ {
		sleep, exceeded := t.strategy().Sleep(retryCount)
		retriable := !exceeded && t.Policy != nil && replayable(request)

		response, err := t.base().RoundTrip(attempt)
		if err != nil {
			if !retriable || !t.Policy.CheckError(err) {
				return nil, err
			}
			t.logger().Debug("retrying request", "url", request.URL.String(), "retryCount", retryCount, "error", err)
		} else {
			if !retriable || !t.Policy.CheckResponse(response) {
				return response, nil
			}
			t.logger().Debug("retrying request", "url", request.URL.String(), "retryCount", retryCount, "status", response.StatusCode)
			_ = response.Body.Close()
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		attempt, err = rewind(request)
		if err != nil {
			return nil, err
		}
	}
}

func replayable(request *http.Request) bool {
	return request.Body == nil || request.Body == http.NoBody || request.GetBody != nil
}

// rewind clones request with a fresh body for the next attempt.
func rewind(request *http.Request) (*http.Request, error) {
	attempt := request.Clone(request.Context())
	if request.Body == nil || request.Body == http.NoBody {
		return attempt, nil
	}

	body, err := request.GetBody()
	if err != nil {
		return nil, xerrors.Errorf("failed to rewind request body: %w", err)
	}
	attempt.Body = body
	return attempt, nil
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) strategy() Strategy {
	if t.Strategy != nil {
		return t.Strategy
	}
	return NewNever()
}

func (t *Transport) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.New(slog.DiscardHandler)
}
