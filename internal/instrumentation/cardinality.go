package instrumentation

import "net/url"

// Cardinality management helpers for metrics and audit events. Metric
// labels must stay low-cardinality or the metrics backend pays for it in
// memory and query latency.

// ExtractRedirectHost returns the host of a redirect URI, reducing
// cardinality by dropping the (potentially per-user) path and query.
//
// Example:
//
//	ExtractRedirectHost("https://app.example.com/u/42/callback")  // "app.example.com"
//	ExtractRedirectHost("not a url")                              // "unknown"
//	ExtractRedirectHost("")                                       // "unknown"
func ExtractRedirectHost(redirectURI string) string {
	if redirectURI == "" {
		return "unknown"
	}

	u, err := url.Parse(redirectURI)
	if err != nil || u.Host == "" {
		return "unknown"
	}

	return u.Host
}
