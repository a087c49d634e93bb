package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"text/template"
	"time"
)

// The schema runs unchanged on Postgres and SQLite. New files start from a
// skeleton that already follows the shared dialect; LintSQL enforces it.
const migrationUpTemplate = `-- Migration: {{.Name}}
-- Description: {{.Description}}
-- Created: {{.Timestamp}}
{{- if .Table}}

CREATE TABLE IF NOT EXISTS {{.Table}} (
    id          UUID        PRIMARY KEY,
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL
);
{{- end}}
`

const migrationDownTemplate = `-- Migration: {{.Name}} (Rollback)
{{- if .Table}}

DROP TABLE IF EXISTS {{.Table}};
{{- end}}
`

// MigrationFile describes a generated up/down pair.
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	Timestamp   string
	// Table is set when the name reads create_<table>; the pair then
	// creates and drops that table.
	Table    string
	UpPath   string
	DownPath string
}

// CreateMigration writes a new up/down pair into migrationsDir. Existing
// files are never overwritten.
func CreateMigration(migrationsDir, name, description string) (*MigrationFile, error) {
	base := sanitizeName(name)
	if base == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(migrationsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	now := time.Now().UTC()
	version := now.Format("20060102150405")
	mf := &MigrationFile{
		Version:     version,
		Name:        base,
		Description: description,
		Timestamp:   now.Format(time.RFC3339),
		UpPath:      filepath.Join(migrationsDir, version+"_"+base+".up.sql"),
		DownPath:    filepath.Join(migrationsDir, version+"_"+base+".down.sql"),
	}
	if table, ok := strings.CutPrefix(base, "create_"); ok {
		mf.Table = table
	}
	if mf.Description == "" {
		mf.Description = strings.ReplaceAll(base, "_", " ")
	}

	if err := render(mf.UpPath, migrationUpTemplate, mf); err != nil {
		return nil, fmt.Errorf("failed to create up migration: %w", err)
	}
	if err := render(mf.DownPath, migrationDownTemplate, mf); err != nil {
		_ = os.Remove(mf.UpPath)
		return nil, fmt.Errorf("failed to create down migration: %w", err)
	}
	return mf, nil
}

func render(path, text string, data *MigrationFile) error {
	tmpl, err := template.New(filepath.Base(path)).Parse(text)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if err := tmpl.Execute(f, data); err != nil {
		f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

// sanitizeName lowercases name and joins its words with underscores.
// Spaces, hyphens and underscores separate words; anything else that is not
// an ASCII letter or digit is dropped.
func sanitizeName(name string) string {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	})
	kept := words[:0]
	for _, w := range words {
		w = strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
				return r
			}
			return -1
		}, w)
		if w != "" {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, "_")
}

// ListMigrations returns the base names of the up migrations in a
// directory, in version order. A missing directory has no migrations.
func ListMigrations(migrationsDir string) ([]string, error) {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	migrations := make([]string, 0, len(entries)/2)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if base, ok := strings.CutSuffix(entry.Name(), ".up.sql"); ok && base != "" {
			migrations = append(migrations, base)
		}
	}
	sort.Strings(migrations)

	return migrations, nil
}

// LintFinding is a statement that would not run the same on both dialects.
type LintFinding struct {
	File    string
	Line    int
	Message string
}

func (f LintFinding) String() string {
	return fmt.Sprintf("%s:%d: %s", f.File, f.Line, f.Message)
}

type lintRule struct {
	re      *regexp.Regexp
	message string
	// unless, when set, is the capture group whose presence makes a match fine
	unless int
}

var lintRules = []lintRule{
	{re: regexp.MustCompile(`(?i)\b(big|small)?serial\b`), message: "SERIAL is Postgres-only; ids and counters come from the application"},
	{re: regexp.MustCompile(`(?i)\b(gen_random_uuid|uuid_generate_v4)\s*\(`), message: "UUID defaults are Postgres-only; ids come from the application"},
	{re: regexp.MustCompile(`(?i)\bnow\s*\(\s*\)`), message: "use CURRENT_TIMESTAMP instead of now()"},
	{re: regexp.MustCompile(`(?i)\btimestamp\b(\s+with(out)?\s+time\s+zone)?`), message: "use TIMESTAMPTZ for timestamps"},
	{re: regexp.MustCompile(`(?i)\bjsonb\b`), message: "JSONB is Postgres-only"},
	{re: regexp.MustCompile(`(?i)\balter\s+table\s+\S+\s+(add|drop|alter)\s+constraint\b`), message: "SQLite cannot alter constraints; declare them in CREATE TABLE"},
	{re: regexp.MustCompile(`(?i)\bcreate\s+(?:unique\s+)?(?:table|index)\s+(if\s+not\s+exists\b)?`), message: "CREATE without IF NOT EXISTS", unless: 1},
	{re: regexp.MustCompile(`(?i)\bdrop\s+(?:table|index)\s+(if\s+exists\b)?`), message: "DROP without IF EXISTS", unless: 1},
}

// LintSQL reports statements in src that are not portable between Postgres
// and SQLite. Line comments are ignored.
func LintSQL(file, src string) []LintFinding {
	var findings []LintFinding
	for i, line := range strings.Split(src, "\n") {
		if code, _, ok := strings.Cut(line, "--"); ok {
			line = code
		}
		for _, rule := range lintRules {
			for _, m := range rule.re.FindAllStringSubmatchIndex(line, -1) {
				if rule.unless > 0 && m[2*rule.unless] >= 0 {
					continue
				}
				findings = append(findings, LintFinding{File: file, Line: i + 1, Message: rule.message})
			}
		}
	}
	return findings
}

// LintDir lints every .sql file in migrationsDir.
func LintDir(migrationsDir string) ([]LintFinding, error) {
	paths, err := filepath.Glob(filepath.Join(migrationsDir, "*.sql"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var findings []LintFinding
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		findings = append(findings, LintSQL(filepath.Base(path), string(src))...)
	}
	return findings, nil
}
