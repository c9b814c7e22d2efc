// Package sqlite provides a SQLite-backed implementation of driven.VectorIndex.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO. Each named collection is a set of rows holding chunk content, JSON metadata
// and the embedding as a little-endian float32 blob. Rows keep an insertion sequence
// number so equal scores rank in the order chunks were added.
//
// Similarity is computed in process: the collection is read in sequence order and
// scored by cosine similarity against the query.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// The database file is configured by vector_index.path, data/processed/vectors.db
// by default.
package sqlite
