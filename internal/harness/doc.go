// Package harness runs scripted editing scenarios against a real session
// and checks the resulting output trace and final state.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: drag_snaps_to_beat
//	description: "A dragged clip lands on the nearest beat"
//	config: editor.yaml          # optional, relative to the scenario
//	project:
//	  name: demo
//	  duration: 10
//	  tracks: 2
//	  items:
//	    - {kind: clip, id: c1, track: 0, start: 0, duration: 2}
//	analysis:                    # optional beat grid
//	  bpm: 120
//	  beat_times: [0, 0.5, 1.0]
//	steps:
//	  - pointer_down: {pointer: 1, target: c1, x: 0, y: 10}
//	  - pointer_move: {pointer: 1, x: 105, y: 10}
//	  - frame: true
//	  - pointer_up: {pointer: 1, x: 105, y: 10}
//	  - key: ctrl+z
//	  - edit: {action: split, id: c1, at: 0.5}
//	    expect_error: "not found"
//	assertions:
//	  - type: item
//	    id: c1
//	    start: 1.0
//	  - type: trace_order
//	    outputs: [drag_start, drag_move, drag_end]
//
// Each step sets exactly one action. Drag frames only fire on explicit
// frame steps, so traces do not depend on wall time.
//
// # Determinism
//
// Every run uses a fresh in-memory store, a deterministic history clock
// and sequential entry IDs. Trace times are recorded as integer
// microseconds so traces serialize to canonical JSON and compare
// byte-for-byte against golden files.
package harness
