package model

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type columnDoc struct {
	Name            string `yaml:"name"`
	Type            string `yaml:"type"`
	NotNull         bool   `yaml:"not_null,omitempty"`
	Primary         bool   `yaml:"primary,omitempty"`
	Identity        bool   `yaml:"identity,omitempty"`
	Unique          bool   `yaml:"unique,omitempty"`
	DefaultValue    string `yaml:"default,omitempty"`
	References      string `yaml:"references,omitempty"`
	ForeignKeyName  string `yaml:"fk_name,omitempty"`
	ForeignKeyIndex string `yaml:"fk_index,omitempty"`
	HistoryExclude  bool   `yaml:"history_exclude,omitempty"`
	Comment         string `yaml:"comment,omitempty"`
}

type tableDoc struct {
	Name         string      `yaml:"name"`
	PkName       string      `yaml:"pk_name,omitempty"`
	Comment      string      `yaml:"comment,omitempty"`
	WithHistory  bool        `yaml:"with_history,omitempty"`
	Draft        bool        `yaml:"draft,omitempty"`
	IdentityType string      `yaml:"identity,omitempty"`
	SequenceName string      `yaml:"sequence,omitempty"`
	Columns      []columnDoc `yaml:"columns"`
}

type modelDoc struct {
	Version string     `yaml:"version,omitempty"`
	Tables  []tableDoc `yaml:"tables"`
}

var identityNames = map[IdentityType]string{
	IdentityNone:     "",
	IdentityColumn:   "identity",
	IdentitySequence: "sequence",
}

// MarshalSnapshot renders the model as YAML. version labels the migration the
// snapshot was taken at.
func MarshalSnapshot(m *ModelContainer, version string) ([]byte, error) {
	doc := modelDoc{Version: version, Tables: []tableDoc{}}
	for _, t := range m.Tables() {
		td := tableDoc{
			Name:         t.Name,
			PkName:       t.PkName,
			Comment:      t.Comment,
			WithHistory:  t.WithHistory,
			Draft:        t.Draft,
			IdentityType: identityNames[t.IdentityType],
			SequenceName: t.SequenceName,
		}
		for _, c := range t.Columns() {
			td.Columns = append(td.Columns, columnDoc(*c))
		}
		doc.Tables = append(doc.Tables, td)
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshaling model: %w", err)
	}
	return data, nil
}

// UnmarshalSnapshot parses a YAML snapshot into a model
func UnmarshalSnapshot(data []byte) (*ModelContainer, string, error) {
	var doc modelDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, "", fmt.Errorf("parsing model: %w", err)
	}

	m := NewModelContainer()
	for _, td := range doc.Tables {
		t := NewMTable(td.Name)
		t.PkName = td.PkName
		t.Comment = td.Comment
		t.WithHistory = td.WithHistory
		t.Draft = td.Draft
		t.SequenceName = td.SequenceName
		for it, name := range identityNames {
			if name == td.IdentityType {
				t.IdentityType = it
			}
		}
		for _, cd := range td.Columns {
			c := MColumn(cd)
			t.AddColumn(&c)
		}
		m.AddTable(t)
	}
	return m, doc.Version, nil
}

// LoadSnapshot reads a snapshot file. A missing file gives an empty model.
func LoadSnapshot(path string) (*ModelContainer, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewModelContainer(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading model %s: %w", path, err)
	}
	m, _, err := UnmarshalSnapshot(data)
	return m, err
}

// SaveSnapshot writes the model to path
func SaveSnapshot(path string, m *ModelContainer, version string) error {
	data, err := MarshalSnapshot(m, version)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
