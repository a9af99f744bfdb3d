// Package database manages the PostgreSQL connection pool for durable storage.
//
// Connections are pooled via pgxpool; each in-flight transaction exclusively
// owns its connection for the duration of the write.
package database
