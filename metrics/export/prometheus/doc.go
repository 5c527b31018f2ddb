// Package prometheus serves memberAuth engine metrics in the Prometheus text
// exposition format without a client library or global registry.
//
// Counters are grouped into labelled families, for example
//
//	memberauth_logins_total{outcome="throttled"} 3
//	memberauth_cookie_rejections_total{reason="hash_mismatch"} 1
//
// and cookie validation latency is the histogram
// memberauth_validate_latency_seconds.
package prometheus
