// Package shares provides share registry and lifecycle management.
//
// The Service manages the registration, lookup, and configuration of
// shares. It coordinates with the metadata service to set up root
// directories and store-to-share mappings.
package shares
