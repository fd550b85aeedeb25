// Package connectors contains the source client implementations that feed
// the ingestion pipeline. Each connector lives in its own subpackage and
// implements the driven.SourceClient port.
package connectors
