// Package config provides configuration parsing for cellctl.
//
// The configuration is stored in cellctl.yaml in the working directory.
// This package handles loading, saving, and validating configuration.
//
// # Configuration File Structure
//
//	log:
//	  level: info
//	  format: text
//	metrics:
//	  enabled: true
//	  namespace: cells
//	tracing:
//	  enabled: false
//	  tracerName: cellctl
//	scenario:
//	  cells:
//	    - name: a
//	      value: 2
//	    - name: b
//	      value: 3
//	      max: 10
//	  aggregates:
//	    - name: total
//	      kind: sum
//	      sources: [a, b]
//	  steps:
//	    - set: total
//	      value: 11
//	    - update: a
//
// # Usage
//
//	cfg, err := config.LoadOptional(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Log level:", cfg.Log.Level)
package config
