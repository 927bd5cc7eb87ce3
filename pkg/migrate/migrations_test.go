package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/naijamart/storefront-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one %s migration, found %d", suffix, len(matches))
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

// The repositories match these constraint names when classifying unique
// violations, so renaming one silently breaks retry and idempotency paths.
func TestMigrationsKeepNamedConstraints(t *testing.T) {
	cases := map[string][]string{
		"create_users": {
			"CONSTRAINT uq_wallet_transactions_reference UNIQUE (reference)",
			"CHECK (wallet_balance >= 0)",
			"DROP TABLE IF EXISTS wallet_transactions",
		},
		"create_orders": {
			"CONSTRAINT uq_orders_order_number UNIQUE (order_number)",
			"REFERENCES orders(id) ON DELETE CASCADE",
			"DROP TABLE IF EXISTS orders",
		},
		"create_catalog": {
			"CHECK (stock >= 0)",
			"CONSTRAINT uq_coupons_code UNIQUE (code)",
		},
		"create_outbox": {
			"CONSTRAINT uq_outbox_dlq_event_id UNIQUE (event_id)",
			"WHERE published_at IS NULL",
		},
		"create_support": {
			"CREATE TABLE IF NOT EXISTS support_tickets",
			"CREATE TABLE IF NOT EXISTS ticket_messages",
		},
	}
	for suffix, checks := range cases {
		content := readMigration(t, suffix)
		for _, sub := range checks {
			if !strings.Contains(content, sub) {
				t.Errorf("%s: missing expected statement %q", suffix, sub)
			}
		}
	}
}
