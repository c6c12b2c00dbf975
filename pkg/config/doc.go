// Package config loads and validates the loom host configuration and
// pipeline definitions from YAML. The host configuration selects the
// KV backend, store path, and telemetry settings; a pipeline file
// declares named steps with their capability metadata and a builtin
// action to run.
package config
