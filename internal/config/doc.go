// Package config loads, normalizes, and validates the tonietool
// configuration file.
//
// Configuration is JSON at ~/.tonietool/config.json by default; the
// TONIETOOL_CONFIG environment variable or an explicit --config flag
// overrides the location. Values absent from the file fall back to
// repository defaults, and CLI flags override file values again.
package config
