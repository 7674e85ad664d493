//go:build sqlite

package main

import (
	"pastebin/internal/storage"
	"pastebin/internal/storage/sqlitestore"
)

func openSQLite(path string) (storage.Store, error) {
	return sqlitestore.Open(path)
}
