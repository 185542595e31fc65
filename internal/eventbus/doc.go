// Package eventbus provides the inter-store signaling channel.
//
// The bus carries named events with arbitrary payloads; it never stores
// values. Every Emit is appended to a bounded ring-buffer history (oldest
// dropped first) for diagnostics and replay. Scope returns a prefixed view
// so independent producers cannot collide on event names.
package eventbus
