// Package testutil provides testing utilities and helpers for the oauth-core
// library: a controllable clock, a deterministic token generator, and small
// assertion helpers.
package testutil
