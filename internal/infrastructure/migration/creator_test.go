package migration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add counters table", "add_counters_table"},
		{"Add-Counters-Table", "add_counters_table"},
		{"ADD_COUNTERS", "add_counters"},
		{"add__payment__requests", "add_payment_requests"},
		{"Seed 2025", "seed_2025"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	t.Run("plain change", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "migrations")

		mf, err := CreateMigration(dir, "add vendor index", "Index payment requests by vendor")
		require.NoError(t, err)
		assert.Len(t, mf.Version, 14)
		assert.Empty(t, mf.Table)

		upBase := strings.TrimSuffix(filepath.Base(mf.UpPath), ".up.sql")
		downBase := strings.TrimSuffix(filepath.Base(mf.DownPath), ".down.sql")
		assert.Equal(t, upBase, downBase)
		assert.Equal(t, mf.Version+"_add_vendor_index", upBase)

		up, err := os.ReadFile(mf.UpPath)
		require.NoError(t, err)
		assert.Contains(t, string(up), "-- Description: Index payment requests by vendor")
		assert.NotContains(t, string(up), "CREATE TABLE")

		down, err := os.ReadFile(mf.DownPath)
		require.NoError(t, err)
		assert.Contains(t, string(down), "(Rollback)")
		assert.NotContains(t, string(down), "DROP")
	})

	t.Run("create_ names scaffold a portable table", func(t *testing.T) {
		dir := t.TempDir()

		mf, err := CreateMigration(dir, "Create vendor-notes", "")
		require.NoError(t, err)
		assert.Equal(t, "vendor_notes", mf.Table)
		assert.Equal(t, "create vendor notes", mf.Description)

		up, err := os.ReadFile(mf.UpPath)
		require.NoError(t, err)
		assert.Contains(t, string(up), "CREATE TABLE IF NOT EXISTS vendor_notes (")
		assert.Contains(t, string(up), "created_at  TIMESTAMPTZ NOT NULL")
		assert.Empty(t, LintSQL("up", string(up)))

		down, err := os.ReadFile(mf.DownPath)
		require.NoError(t, err)
		assert.Contains(t, string(down), "DROP TABLE IF EXISTS vendor_notes;")
		assert.Empty(t, LintSQL("down", string(down)))

		findings, err := LintDir(dir)
		require.NoError(t, err)
		assert.Empty(t, findings)
	})

	t.Run("generated pair applies on sqlite and rolls back", func(t *testing.T) {
		dir := t.TempDir()
		_, err := CreateMigration(dir, "create vendor notes", "")
		require.NoError(t, err)

		db := openSQLite(t)
		m, err := New(db, DialectSQLite, dir, zap.NewNop())
		require.NoError(t, err)
		require.NoError(t, m.Up())
		assert.True(t, tableExists(t, db, "vendor_notes"))
		require.NoError(t, m.Down())
		assert.False(t, tableExists(t, db, "vendor_notes"))
	})

	t.Run("existing files are not overwritten", func(t *testing.T) {
		dir := t.TempDir()
		first, err := CreateMigration(dir, "add remarks", "")
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(first.UpPath, []byte("-- edited"), 0o644))

		// same second, same name
		if _, err := CreateMigration(dir, "add remarks", ""); err == nil {
			t.Skip("clock moved to the next second")
		}
		up, err := os.ReadFile(first.UpPath)
		require.NoError(t, err)
		assert.Equal(t, "-- edited", string(up))
	})

	t.Run("name without usable characters", func(t *testing.T) {
		_, err := CreateMigration(t.TempDir(), "!!!", "")
		assert.Error(t, err)
	})
}

func TestLintSQL(t *testing.T) {
	src := `-- SERIAL in a comment is fine
CREATE TABLE vendors (
    id          BIGSERIAL PRIMARY KEY,
    ref         UUID DEFAULT gen_random_uuid(),
    payload     JSONB,
    created_at  TIMESTAMP NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX idx_vendors_ref ON vendors (ref);
CREATE UNIQUE INDEX IF NOT EXISTS idx_vendors_id ON vendors (id);
ALTER TABLE vendors ADD CONSTRAINT chk_ref CHECK (ref IS NOT NULL);
DROP TABLE vendors;`

	var got []string
	for _, f := range LintSQL("x.up.sql", src) {
		got = append(got, f.String())
	}
	assert.Equal(t, []string{
		"x.up.sql:2: CREATE without IF NOT EXISTS",
		"x.up.sql:3: SERIAL is Postgres-only; ids and counters come from the application",
		"x.up.sql:4: UUID defaults are Postgres-only; ids come from the application",
		"x.up.sql:5: JSONB is Postgres-only",
		"x.up.sql:6: use CURRENT_TIMESTAMP instead of now()",
		"x.up.sql:6: use TIMESTAMPTZ for timestamps",
		"x.up.sql:9: CREATE without IF NOT EXISTS",
		"x.up.sql:11: SQLite cannot alter constraints; declare them in CREATE TABLE",
		"x.up.sql:12: DROP without IF EXISTS",
	}, got)
}

func TestLintDir_RepositoryMigrations(t *testing.T) {
	findings, err := LintDir(repoMigrations)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestListMigrations(t *testing.T) {
	t.Run("sorted base names of up files", func(t *testing.T) {
		dir := t.TempDir()
		for _, f := range []string{
			"20250101000100_records.up.sql",
			"20250101000100_records.down.sql",
			"20250101000000_counters.up.sql",
			"20250101000000_counters.down.sql",
			"README.md",
			".up.sql",
		} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("-- test"), 0o644))
		}
		require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir.up.sql"), 0o755))

		migrations, err := ListMigrations(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"20250101000000_counters", "20250101000100_records"}, migrations)
	})

	t.Run("missing directory", func(t *testing.T) {
		migrations, err := ListMigrations(filepath.Join(t.TempDir(), "absent"))
		require.NoError(t, err)
		assert.Empty(t, migrations)
	})

	t.Run("repository migrations", func(t *testing.T) {
		migrations, err := ListMigrations(repoMigrations)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"20250101000000_create_sequence_counters",
			"20250101000100_create_backoffice_records",
		}, migrations)
	})
}
