// Package policy defines policy profiles and rules, and the loader that
// imports them from YAML or JSON rule-set documents.
//
// A policy profile is a named, versioned, immutable collection of rules for a
// target language. Profiles are created exclusively through the Loader, which
// validates every rule and compiles every rule expression before anything is
// persisted: a document either imports completely or not at all. Because
// profiles never change after import, compiled rule patterns are safe to
// share across concurrent scans without locking.
//
// Example document:
//
//	profile:
//	  name: Python Security Baseline
//	  domain: python
//	  version: 1.0.0
//	rules:
//	  - key: no_eval
//	    description: Avoid eval() on dynamic input
//	    category: security
//	    expression: 'eval\('
//	    severity: high
//	    auto_fixable: true
package policy
