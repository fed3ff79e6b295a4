// Package postgres implements the store interfaces on PostgreSQL through the
// pgx database/sql driver. It owns the embedded goose migrations, the
// translation of visibility predicates into SQL, and the mapping of driver
// errors onto store sentinels.
package postgres
