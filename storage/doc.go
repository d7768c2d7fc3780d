// Package storage provides the TokenStore capability interface and the token
// record type shared by all storage backends.
//
// The lifecycle core never caches token state across calls; every validate
// and rotate re-reads from the store so revocations made elsewhere are
// observed immediately, subject to the backend's consistency guarantees.
package storage
