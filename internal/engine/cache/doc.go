// Package cache stores fetched cost tables between runs.
//
// Three backends implement Store:
//   - MemoryStore keeps entries for the life of the process.
//   - FileStore persists JSON entries under ~/.costlens/cache.
//   - RedisStore shares entries between server replicas.
//
// Keys are SHA-256 digests of the normalized fetch parameters, see GenerateKey.
// Entries carry their own expiry; a zero TTL never expires.
package cache
