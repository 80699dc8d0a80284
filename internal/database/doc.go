// Package database keeps a SQLite ledger of processed scans so operators can
// see what was filed, where, and which labels missed their size envelope.
package database
