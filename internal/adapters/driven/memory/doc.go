// Package memory provides process-local stores used when no database is
// configured. State does not survive a restart and is not shared between
// instances, so the api run mode needs Redis or PostgreSQL.
package memory
