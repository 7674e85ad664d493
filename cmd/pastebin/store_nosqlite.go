//go:build !sqlite

package main

import (
	"errors"

	"pastebin/internal/storage"
)

func openSQLite(string) (storage.Store, error) {
	return nil, errors.New("sqlite store not compiled in, rebuild with -tags sqlite")
}
