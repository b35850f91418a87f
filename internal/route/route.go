// Package route models per-session URL query state for dashboard clients.
//
// Sessions mirror the browser's location: clients report query-string changes
// as navigate events, and the server answers with history-replace commands when
// it needs to rewrite the URL (e.g. to scrub an invalid taskId). The package
// deliberately separates trigger inputs (query changes) from observed state
// (the selection store): nothing here reacts to selection writes.
package route

import (
	"net/url"
)

// TaskIDParam is the query parameter carrying the selected task identifier.
const TaskIDParam = "taskId"

// TaskID returns the current taskId value, or "" when the parameter is absent.
func TaskID(params url.Values) string {
	return params.Get(TaskIDParam)
}

// Without returns a copy of params with the given key removed.
// All other parameters are preserved.
func Without(params url.Values, key string) url.Values {
	out := make(url.Values, len(params))
	for k, vs := range params {
		if k == key {
			continue
		}
		cp := make([]string, len(vs))
		copy(cp, vs)
		out[k] = cp
	}
	return out
}

// ParseQuery parses a raw query string into params.
// Malformed escapes are tolerated: url.ParseQuery returns the pairs it could
// parse, and a navigation event should never be dropped wholesale because one
// pair is garbled.
func ParseQuery(raw string) url.Values {
	params, err := url.ParseQuery(raw)
	if err != nil && params == nil {
		return url.Values{}
	}
	return params
}

// Navigator rewrites the client's URL without adding a history entry.
// Implementations must replace, never push: the failure path of the
// synchronizer scrubs taskId and a back-button press should not restore it.
type Navigator interface {
	Replace(params url.Values)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(params url.Values)

// Replace implements Navigator.
func (f NavigatorFunc) Replace(params url.Values) { f(params) }
