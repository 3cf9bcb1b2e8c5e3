// Package config loads, validates, and watches the netwatch YAML
// configuration. A config that fails validation never reaches the
// pipeline: Load reports the offending field and the process refuses
// to start.
package config
