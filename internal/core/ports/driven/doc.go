// Package driven defines the secondary ports: interfaces the core services
// depend on, implemented by adapters (the sqlite store, the clearinghouse
// connectors). Following hexagonal architecture, the core owns these
// contracts and the adapters satisfy them.
package driven
