// Package config loads app manager configuration.
//
// Values come from three layers, later layers winning:
//  1. Default()
//  2. an optional YAML (.yaml/.yml) or TOML (.toml) file
//  3. environment variables (see the envconfig tags)
//
// Only three values are consumed by the core domains: the download id seed,
// the download directory and the runtime app-portal prefix. The rest tune the
// host process.
package config
