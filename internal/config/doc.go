// Package config loads and validates the relay's YAML configuration.
//
// Loading is a three-step chain: Load parses the file with ${VAR}
// environment expansion, LoadWithDefaults fills unset fields, and
// LoadAndValidate rejects configs the relay cannot run with.
package config
