// Package storage provides run snapshot storage implementations.
//
// Snapshots are short lived: the in-memory adapter keeps them for the life
// of the process and the Redis adapter lets them expire after a TTL.
package storage
