package cli

import (
	"github.com/olivaw/daneel/internal/db"
)

// openDB opens the event database at its default location, creating
// it on first use.
func openDB() (*db.DB, error) {
	path, err := db.DefaultDBPath()
	if err != nil {
		return nil, err
	}
	return db.Open(path)
}
