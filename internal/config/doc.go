// Package config loads coinfo settings.
//
// Values come from an optional YAML file (see configs/coinfo.example.yaml),
// in which ${VAR} references are expanded from the environment, and are then
// overridden by COINFO_* variables such as COINFO_SERVER_PORT or
// COINFO_REDIS_ADDR. A local .env file, when present, is read first.
package config
