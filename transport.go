package session

import (
	"context"
	"net/http"
)

// TokenRefresher is the slice of Manager the transport needs: refresh the
// stored credentials or tear the session down trying.
type TokenRefresher interface {
	Refresh(ctx context.Context) error
}

// BearerTransport decorates requests from the portal's non-auth REST
// wrappers: it reads the TokenStore synchronously to attach the
// Authorization header, refreshes once when the backend answers 401 (or
// when the token is already expired locally), replays the request, and
// otherwise hands back the original response.
//
// A refresh failure logs the session out through the refresher; the caller
// still receives the 401 so it can redirect.
type BearerTransport struct {
	Base      http.RoundTripper
	Tokens    TokenStore
	Refresher TokenRefresher
}

// RoundTrip implements http.RoundTripper.
func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	token := t.Tokens.Get()
	if token != "" && TokenExpired(token) && t.Refresher != nil {
		// Refresh proactively instead of burning a request on a known 401.
		if err := t.Refresher.Refresh(req.Context()); err == nil {
			token = t.Tokens.Get()
		}
	}

	attempt := cloneRequest(req)
	if token != "" {
		attempt.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := base.RoundTrip(attempt)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized || t.Refresher == nil {
		return resp, nil
	}

	if !replayable(req) {
		return resp, nil
	}

	if rerr := t.Refresher.Refresh(req.Context()); rerr != nil {
		// Session is gone; surface the original 401.
		return resp, nil
	}

	fresh := t.Tokens.Get()
	if fresh == "" || fresh == token {
		return resp, nil
	}

	resp.Body.Close()

	retry := cloneRequest(req)
	if req.GetBody != nil {
		body, berr := req.GetBody()
		if berr != nil {
			return nil, berr
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+fresh)

	return base.RoundTrip(retry)
}

// replayable reports whether the request body can be re-sent.
func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func cloneRequest(req *http.Request) *http.Request {
	out := req.Clone(req.Context())
	return out
}
