package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/conduit-lang/ebean/internal/orm/migrate/model"
)

const (
	rollbackDir = "rollback"
	dropDir     = "drop"
	modelDir    = "model"
	modelSuffix = ".model.yaml"
)

var scriptName = regexp.MustCompile(`^(\d+(?:\.\d+)*)__([A-Za-z0-9_]+)\.sql$`)

// ScriptWriter writes migration scripts under a migration directory:
// apply scripts at the top level, rollback and drop scripts in subdirectories
// with the same file name, and a model snapshot per version.
type ScriptWriter struct {
	dir string
}

// NewScriptWriter creates a writer for a migration directory
func NewScriptWriter(dir string) *ScriptWriter {
	return &ScriptWriter{dir: dir}
}

// Write writes the scripts of a migration and returns the paths written. A script
// with no statements produces no file.
func (s *ScriptWriter) Write(m *Migration) ([]string, error) {
	var written []string

	scripts := []struct {
		dir string
		sql string
	}{
		{s.dir, m.Up},
		{filepath.Join(s.dir, rollbackDir), m.Down},
		{filepath.Join(s.dir, dropDir), m.Drop},
	}
	for _, script := range scripts {
		if strings.TrimSpace(script.sql) == "" {
			continue
		}
		path, err := writeFile(script.dir, m.FileName(), script.sql)
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// WriteModel stores the model snapshot the migration moved the schema to
func (s *ScriptWriter) WriteModel(version string, m *model.ModelContainer) (string, error) {
	dir := filepath.Join(s.dir, modelDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, version+modelSuffix)
	if err := model.SaveSnapshot(path, m, version); err != nil {
		return "", err
	}
	return path, nil
}

func writeFile(dir, name, content string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// LoadMigrations reads the apply scripts of a directory together with their
// rollback and drop scripts, ordered by version
func LoadMigrations(dir string) ([]*Migration, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading migration directory: %w", err)
	}

	var migrations []*Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := scriptName.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}

		up, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		down, err := readOptional(filepath.Join(dir, rollbackDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		drop, err := readOptional(filepath.Join(dir, dropDir, entry.Name()))
		if err != nil {
			return nil, err
		}

		migrations = append(migrations, &Migration{
			Version:  match[1],
			Name:     match[2],
			Up:       string(up),
			Down:     down,
			Drop:     drop,
			Checksum: Checksum(string(up)),
		})
	}

	sort.SliceStable(migrations, func(i, j int) bool {
		return CompareVersions(migrations[i].Version, migrations[j].Version) < 0
	})
	return migrations, nil
}

func readOptional(path string) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// Versions returns the versions of the scripts and model snapshots in a directory
func Versions(dir string) ([]string, error) {
	var versions []string

	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading migration directory: %w", err)
	}
	for _, entry := range entries {
		if match := scriptName.FindStringSubmatch(entry.Name()); match != nil && !entry.IsDir() {
			versions = append(versions, match[1])
		}
	}

	models, err := os.ReadDir(filepath.Join(dir, modelDir))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading model directory: %w", err)
	}
	for _, entry := range models {
		if v, ok := strings.CutSuffix(entry.Name(), modelSuffix); ok {
			versions = append(versions, v)
		}
	}
	return versions, nil
}

// LoadCurrentModel reads the latest model snapshot of a directory. With no
// snapshot the model is empty.
func LoadCurrentModel(dir string) (*model.ModelContainer, error) {
	entries, err := os.ReadDir(filepath.Join(dir, modelDir))
	if os.IsNotExist(err) {
		return model.NewModelContainer(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading model directory: %w", err)
	}

	var latest string
	for _, entry := range entries {
		v, ok := strings.CutSuffix(entry.Name(), modelSuffix)
		if !ok {
			continue
		}
		if latest == "" || CompareVersions(v, latest) > 0 {
			latest = v
		}
	}
	if latest == "" {
		return model.NewModelContainer(), nil
	}
	return model.LoadSnapshot(filepath.Join(dir, modelDir, latest+modelSuffix))
}

// SplitStatements splits a script into statements on the terminator at the end of
// a line. Dollar quoted bodies and begin/end trigger blocks stay whole.
func SplitStatements(script string) []string {
	var statements []string
	var current strings.Builder
	inDollar := false
	depth := 0

	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" && current.Len() == 0 {
			continue
		}
		if strings.HasPrefix(trimmed, "--") && current.Len() == 0 {
			continue
		}
		current.WriteString(line)
		current.WriteByte('\n')

		if strings.Count(line, "$$")%2 == 1 {
			inDollar = !inDollar
		}
		if inDollar {
			continue
		}

		lower := strings.ToLower(trimmed)
		if strings.HasSuffix(lower, " begin") || lower == "begin" {
			depth++
			continue
		}
		if depth > 0 && (lower == "end;" || lower == "end") {
			depth--
		}
		if depth == 0 && strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(current.String()), ";"))
			if stmt != "" {
				statements = append(statements, stmt)
			}
			current.Reset()
		}
	}

	if rest := strings.TrimSpace(current.String()); rest != "" {
		statements = append(statements, rest)
	}
	return statements
}
