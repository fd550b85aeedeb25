// Package file loads the application's TOML configuration from disk,
// layering file values over built-in defaults and honoring the API token
// environment variable.
package file
