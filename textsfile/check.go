package textsfile

import "fmt"

// ProblemKind classifies a consistency problem.
type ProblemKind int

const (
	// MissingSection: a configured section is absent from the file.
	MissingSection ProblemKind = iota
	// MissingValue: a declared key has no value in a locale section.
	MissingValue
	// Undeclared: a locale section holds a key the type does not declare.
	Undeclared
	// Duplicate: a section holds the same key twice.
	Duplicate
	// Unordered: a key sorts before the key above it.
	Unordered
)

func (k ProblemKind) String() string {
	switch k {
	case MissingSection:
		return "missing section"
	case MissingValue:
		return "missing value"
	case Undeclared:
		return "undeclared key"
	case Duplicate:
		return "duplicate key"
	case Unordered:
		return "out of order"
	}
	return "unknown"
}

// Problem is one finding of Check.
type Problem struct {
	Kind    ProblemKind
	Section string
	Key     string
}

func (p Problem) String() string {
	if p.Key == "" {
		return fmt.Sprintf("%s: %s", p.Section, p.Kind)
	}
	return fmt.Sprintf("%s: %s %q", p.Section, p.Kind, p.Key)
}

// Check reports inconsistencies between the sections. An unterminated
// section is returned as an error since nothing after it can be trusted.
func (f *File) Check() ([]Problem, error) {
	var problems []Problem

	declared := make(map[string]bool)
	var typeFound bool

	for _, name := range f.sectionNames() {
		sec, ok, err := f.find(name)
		if err != nil {
			return nil, err
		}
		if !ok {
			problems = append(problems, Problem{Kind: MissingSection, Section: name})
			continue
		}

		seen := make(map[string]bool, len(sec.Keys))
		prev := ""
		for _, k := range sec.Keys {
			if seen[k] {
				problems = append(problems, Problem{Kind: Duplicate, Section: name, Key: k})
			}
			seen[k] = true
			if prev != "" && k < prev {
				problems = append(problems, Problem{Kind: Unordered, Section: name, Key: k})
			}
			prev = k
		}

		if name == TypeSection {
			typeFound = true
			for k := range seen {
				declared[k] = true
			}
			continue
		}
		if !typeFound {
			continue
		}
		for _, k := range sec.Keys {
			if !declared[k] {
				problems = append(problems, Problem{Kind: Undeclared, Section: name, Key: k})
			}
		}
		typeSec, _, _ := f.find(TypeSection)
		for _, k := range typeSec.Keys {
			if !seen[k] {
				problems = append(problems, Problem{Kind: MissingValue, Section: name, Key: k})
			}
		}
	}

	return problems, nil
}
