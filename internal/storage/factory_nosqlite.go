//go:build !sqlite

package storage

import "fmt"

// DefaultStoreKind is the persistent backend compiled into this build.
func DefaultStoreKind() string {
	return "file"
}

func newSQLiteStore(_ string) (Store, error) {
	return nil, fmt.Errorf("sqlite backend unavailable in this build; rebuild with -tags sqlite")
}
