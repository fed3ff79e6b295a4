// Package store defines the persistence contracts for tasks, users and
// departments. Implementations live under internal/platform; services depend
// only on these interfaces.
package store
