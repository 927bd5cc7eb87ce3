package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateAtWritesValidTemplate(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	path, err := createAt(dir, "Add Ticket Priority!", now)
	require.NoError(t, err)
	require.Equal(t, "20260301093000_add_ticket_priority.sql", filepath.Base(path))
	require.NoError(t, ValidateDir(dir))

	_, err = createAt(dir, "add ticket priority", now)
	require.Error(t, err, "same version and slug must not overwrite")

	_, err = createAt(dir, "!!!", now)
	require.Error(t, err)
}

func TestValidateDirRejectsBadFiles(t *testing.T) {
	cases := map[string]struct {
		name string
		body string
	}{
		"bad name":       {"create_orders.sql", upMarker + "\nSELECT 1;\n" + downMarker + "\n"},
		"missing down":   {"20260101000000_x.sql", upMarker + "\nSELECT 1;\n"},
		"down before up": {"20260101000000_x.sql", downMarker + "\n" + upMarker + "\nSELECT 1;\n"},
		"empty up":       {"20260101000000_x.sql", upMarker + "\n-- nothing\n" + downMarker + "\nDROP TABLE x;\n"},
	}
	for label, tc := range cases {
		t.Run(label, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, tc.name), []byte(tc.body), 0o644))
			require.Error(t, ValidateDir(dir))
		})
	}
}

func TestValidateDirRejectsDuplicateVersions(t *testing.T) {
	dir := t.TempDir()
	body := upMarker + "\nSELECT 1;\n" + downMarker + "\nSELECT 1;\n"
	for _, name := range []string{"20260101000000_a.sql", "20260101000000_b.sql"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	err := ValidateDir(dir)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "duplicate migration version"))
}

func TestParseVersion(t *testing.T) {
	if v, err := parseVersion("20260101120000"); err != nil || v != 20260101120000 {
		t.Fatalf("unexpected %d %v", v, err)
	}
	for _, bad := range []string{"", "2026", "2026010112000x", "202601011200000"} {
		if _, err := parseVersion(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestRunRequiresDatabaseAndDir(t *testing.T) {
	if err := Run(context.Background(), nil, DefaultDir, "up"); err == nil {
		t.Fatal("expected error without a database")
	}
	if err := MigrateToVersion(context.Background(), nil, DefaultDir, "bogus"); err == nil {
		t.Fatal("expected version error")
	}
}
