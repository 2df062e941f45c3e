package seed

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// DefaultGroups are the roles every installation starts with.
var DefaultGroups = []struct {
	Name        string
	Description string
}{
	{"admin", "Administrators: full access to the back office"},
	{"seller", "Shop attendants who register sales"},
	{"customer", "Buyers; cannot access the sales screen"},
}

// Groups inserts any missing default group. Existing rows are left untouched.
func Groups(ctx context.Context, db *sqlx.DB) error {
	query := db.Rebind(`INSERT INTO user_groups (name, description) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`)
	for _, g := range DefaultGroups {
		if _, err := db.ExecContext(ctx, query, g.Name, g.Description); err != nil {
			return fmt.Errorf("seed group %s: %w", g.Name, err)
		}
	}
	return nil
}
