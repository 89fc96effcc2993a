// Package config holds the crawler's run settings and the per-site YAML
// configuration file.
package config
