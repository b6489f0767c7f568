package deploy

import (
	"fmt"
	"sort"
	"strings"
)

// PathProperties is a set of properties per path, as used to describe the
// document stored in a doc store. The root path is "".
type PathProperties struct {
	paths map[string][]string
}

// NewPathProperties creates an empty set
func NewPathProperties() *PathProperties {
	return &PathProperties{paths: make(map[string][]string)}
}

// ParsePathProperties parses the "name,status,customer(id,name),lines(*)" form.
// Enclosing parentheses around the whole expression are optional.
func ParsePathProperties(s string) (*PathProperties, error) {
	pp := NewPathProperties()
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") && matchingParen(s, 0) == len(s)-1 {
		s = s[1 : len(s)-1]
	}
	if err := pp.parse("", s); err != nil {
		return nil, err
	}
	return pp, nil
}

func matchingParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func (pp *PathProperties) parse(path, s string) error {
	start := 0
	for i := 0; i <= len(s); i++ {
		if i < len(s) && s[i] == '(' {
			end := matchingParen(s, i)
			if end < 0 {
				return fmt.Errorf("unbalanced parentheses in %q", s)
			}
			name := strings.TrimSpace(s[start:i])
			if name == "" {
				return fmt.Errorf("missing property name before '(' in %q", s)
			}
			pp.Add(path, name)
			if err := pp.parse(join(path, name), s[i+1:end]); err != nil {
				return err
			}
			i = end
			// skip to the next separator
			for i+1 < len(s) && s[i+1] != ',' {
				i++
			}
			start = i + 1
			continue
		}
		if i == len(s) || s[i] == ',' {
			if name := strings.TrimSpace(s[start:i]); name != "" {
				if strings.ContainsAny(name, ")") {
					return fmt.Errorf("unbalanced parentheses in %q", s)
				}
				pp.Add(path, name)
			}
			start = i + 1
		}
	}
	return nil
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

// Add adds a property to a path
func (pp *PathProperties) Add(path, property string) {
	for _, p := range pp.paths[path] {
		if p == property {
			return
		}
	}
	pp.paths[path] = append(pp.paths[path], property)
}

// Properties returns the properties of a path in declaration order
func (pp *PathProperties) Properties(path string) []string {
	return pp.paths[path]
}

// Paths returns all paths in sorted order
func (pp *PathProperties) Paths() []string {
	paths := make([]string, 0, len(pp.paths))
	for p := range pp.paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// IncludesProperty reports whether a property is included at a path.
// A "*" entry includes every property.
func (pp *PathProperties) IncludesProperty(path, property string) bool {
	for _, p := range pp.paths[path] {
		if p == property || p == "*" {
			return true
		}
	}
	return false
}

// IsEmpty reports whether no properties were added
func (pp *PathProperties) IsEmpty() bool {
	return len(pp.paths) == 0
}
