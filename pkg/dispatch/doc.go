// Package dispatch implements the provider cascade: given a request and the
// adapter registry, it tries candidate adapters in priority order with
// per-adapter timeouts and bounded retry-with-backoff, normalizes the first
// success, and falls back to the local canned responder when every adapter
// fails. For well-formed input the dispatcher never surfaces a provider
// failure to the caller.
package dispatch
