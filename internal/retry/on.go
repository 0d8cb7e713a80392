package retry

import (
	"errors"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// Policy decides which callback responses and transport errors are worth
// another attempt. Its conditions follow Envoy's retry_on names.
type Policy struct {
	serverError    bool
	gatewayError   bool
	connectFailure bool
	retriable4xx   bool
	rateLimited    bool
	statusCodes    []int
}

// NewDefaultPolicy retries gateway errors, conflicts, rate limiting and
// connection failures.
func NewDefaultPolicy() *Policy {
	return &Policy{
		gatewayError:   true,
		connectFailure: true,
		retriable4xx:   true,
		rateLimited:    true,
		statusCodes:    []int{},
	}
}

// ParsePolicy reads a comma separated list such as
// "gateway-error,connect-failure,429".
func ParsePolicy(s string) (*Policy, error) {
	p := &Policy{}
	for _, condition := range strings.Split(s, ",") {
		switch strings.TrimSpace(condition) {
		case "5xx":
			p.serverError = true
		case "gateway-error":
			p.gatewayError = true
		case "connect-failure":
			p.connectFailure = true
		case "retriable-4xx":
			p.retriable4xx = true
		case "rate-limited":
			p.rateLimited = true
		default:
			statusCode, err := strconv.Atoi(strings.TrimSpace(condition))
			if err != nil {
				return nil, xerrors.Errorf("invalid retry condition: %s", condition)
			}
			p.statusCodes = append(p.statusCodes, statusCode)
		}
	}
	return p, nil
}

// copy from https://github.com/envoyproxy/envoy/blob/70d6ec1df6384118cf2fa2f02c0041edb76b2377/source/common/router/retry_state_impl.cc#L387
func (p *Policy) CheckResponse(response *http.Response) bool {
	switch {
	case p.serverError && response.StatusCode >= 500 && response.StatusCode < 600:
		return true
	case p.gatewayError && response.StatusCode >= 502 && response.StatusCode < 505:
		return true
	case p.retriable4xx && response.StatusCode == http.StatusConflict:
		return true
	case p.rateLimited && response.StatusCode == http.StatusTooManyRequests:
		return true
	}

	return slices.Contains(p.statusCodes, response.StatusCode)
}

func (p *Policy) CheckError(err error) bool {
	if !p.connectFailure && !p.serverError {
		return false
	}

	type temporary interface{ Temporary() bool }
	var terr temporary
	return (errors.As(err, &terr) && terr.Temporary()) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
