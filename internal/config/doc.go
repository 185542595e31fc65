// Package config loads registry seed files.
//
// A seed file declares plain stores (name, initial value, optional
// comparison, tags, description) and expression-backed computed stores.
// Files ending in .cue are evaluated with CUE and must be concrete; every
// other file is read as YAML.
//
// Example (YAML):
//
//	comparison:
//	  strategy: deep
//	stores:
//	  - name: A
//	    initial: 2
//	  - name: B
//	    initial: 3
//	computed:
//	  - name: sum
//	    deps: [A, B]
//	    expr: A + B
package config
