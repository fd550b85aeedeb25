// Package driving defines the primary ports: the service contracts consumed
// by the CLI.
package driving
