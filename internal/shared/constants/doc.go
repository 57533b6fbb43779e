// Package constants centralizes configuration defaults shared across the CLI.
//
// Keeping file permissions, well-known file names, and category tags in one
// place prevents magic strings from scattering across cmd/ and internal/.
// The values here can be referenced from multiple packages without
// introducing import cycles.
package constants
