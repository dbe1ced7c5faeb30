// Package config loads, normalizes, and validates jobsift configuration data.
//
// It supplies repository defaults for tuning knobs, expands user paths
// (including tilde shortcuts), reads TOML files, and honours environment
// fallbacks such as OPENROUTER_API_KEY. Policy values that change pipeline
// behaviour (spawn depth, retry budget, strike threshold, scheduler targets)
// have no defaults: a missing file or a missing key fails Load with an
// explicit error naming the key.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
