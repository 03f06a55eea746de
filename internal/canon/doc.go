// Package canon produces canonical JSON and domain-separated content hashes.
//
// Canonical JSON here follows RFC 8785 for the subset of values the editor
// needs to identify by content: strings, integers, booleans, arrays and
// objects. Floats and null are rejected so that two logically equal values
// can never serialize to different bytes.
//
// Consumers:
//   - waveform cache keys (render configuration identity)
//   - harness golden traces (byte-stable trace snapshots)
package canon
