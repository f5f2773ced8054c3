package diag

import (
	"context"
	"errors"
)

// CheckWebUI requests "/" under baseURL. No URL means the UI is not configured
// and nothing is attempted.
func CheckWebUI(ctx context.Context, baseURL string, checker HTTPChecker) WebUIStatus {
	if baseURL == "" {
		return WebUIStatus{Enabled: false, Reachable: false}
	}
	if checker == nil {
		checker = Unsupported{}
	}
	res, err := checker.HTTPCheck(ctx, baseURL, "/")
	switch {
	case errors.Is(err, ErrNotImplemented):
		return WebUIStatus{Enabled: true, Reachable: false, Error: "http_check not implemented"}
	case err != nil:
		return WebUIStatus{Enabled: true, Reachable: false, Error: err.Error()}
	}
	st := WebUIStatus{Enabled: true, Reachable: true}
	if res != nil {
		st.StatusCode = res.StatusCode
		st.ResponseTimeMs = float64(res.ResponseTime.Microseconds()) / 1000
	}
	return st
}
