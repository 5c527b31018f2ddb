// Package internaldefs maps engine counters onto the exported metric
// families shared by the Prometheus and OpenTelemetry exporters.
//
// Engine counters are flat; exporters group them into labelled families so
// that, for example, every login outcome is one series of
// memberauth_logins_total.
package internaldefs
