// Package harness runs event scripts against scripted collaborators and
// checks the outcome, so script behavior can be pinned down as executable
// contract tests.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: intro_no
//	description: "switch 1 off shows exactly one message"
//	files:
//	  - scripts/intro.cue
//	scripts:
//	  - id: 2
//	    trigger: parallel
//	    commands:
//	      - {op: set_variable, params: [1, 1, 1, 0, 1]}
//	state:
//	  switches: {1: false}
//	  variables: {3: 10}
//	choices: [1]
//	triggers:
//	  - script: 1
//	  - script: 2
//	    frame: 5
//	frames: 100
//	assertions:
//	  - type: messages
//	    texts: ["no"]
//	  - type: variable
//	    id: 1
//	    value: 1
//	  - type: idle
//
// # Assertion Types
//
//   - messages: shown message texts, in order
//   - variable, switch, self_switch: final store values
//   - idle: every interpreter has terminated
//   - diagnostic: a runtime error code was reported
//   - trace_count, trace_order: executed opcodes
//   - mutations: applied map mutation kinds, in order
//   - frames: the number of frames the run took
//
// # Deterministic Testing
//
// Every run gets a fresh in-memory store, an auto-advancing message queue
// answering choice sets from the scenario's choices, an idle map and
// sequential interpreter handles ("h-1", "h-2", ...). Identical scenarios
// therefore produce identical traces, which Snapshot renders as canonical
// JSON for golden file comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/intro.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
