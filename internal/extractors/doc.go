// Package extractors provides implementations of the Extractor
// interface for the supported document formats. Each extractor knows
// how to pull metadata and text out of one container format.
//
// Extractors are registered with the Registry at startup and selected
// by file extension.
package extractors
