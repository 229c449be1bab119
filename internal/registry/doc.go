// Package registry keeps a durable catalog of every recording the service
// has seen, backed by SQLite. It backs the records listing endpoint and lets
// the service enumerate recordings across restarts without scanning the
// upload directory.
package registry
