package scraper

import (
	"errors"
	"fmt"
)

// Cause classifies why an adapter could not produce observations
type Cause string

const (
	CauseNetwork           Cause = "network"
	CauseHTTPStatus        Cause = "http-status"
	CauseParse             Cause = "parse"
	CauseNavigationTimeout Cause = "navigation-timeout"
	CauseNoContent         Cause = "no-content"
	CauseBrowserCrash      Cause = "browser-crash"
)

// FetchFailure is the only error an adapter returns from Fetch
type FetchFailure struct {
	Adapter    string
	Cause      Cause
	StatusCode int
	Err        error
}

func (f *FetchFailure) Error() string {
	msg := fmt.Sprintf("%s fetch failed (%s)", f.Adapter, f.Cause)
	if f.StatusCode != 0 {
		msg += fmt.Sprintf(" status %d", f.StatusCode)
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *FetchFailure) Unwrap() error {
	return f.Err
}

// CauseOf returns the cause of the first FetchFailure in err's chain
func CauseOf(err error) (Cause, bool) {
	var ff *FetchFailure
	if errors.As(err, &ff) {
		return ff.Cause, true
	}
	return "", false
}
