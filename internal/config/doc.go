// Package config loads and validates scraper configuration.
//
// Configuration is layered koanf-style: built-in defaults, then an optional
// YAML file, then AJP_-prefixed environment variables. Invalid limits are
// rejected before any scraping work is dispatched.
package config
