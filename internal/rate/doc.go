// Package rate provides the Redis-backed failed-login throttle.
//
// Each failed password login increments a counter for the member's user
// name and, when enabled, one for the client address. A counter's window
// opens at its first failure and lasts Config.Window; an attempt is refused
// once any of its counters exceeds Config.MaxFailures. A successful login
// resets both.
//
// The engine decides what counts as a failure and resolves email logins to
// the member's user name before calling in, so both forms share a budget.
package rate
