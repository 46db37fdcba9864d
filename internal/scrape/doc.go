// Package scrape defines the core types shared across the extraction
// pipeline: buildings, units, scrape runs, the strategy contract, and the
// per-building state transitions.
package scrape
