// mapping.go - Cell-mapping definition parser (mapping.txt)

package mapping

import (
	"fmt"
	"log"
	"regexp"
	"strings"
)

// BlankSentinel marks a field the model decided is intentionally empty, as
// opposed to a field it could not match at all (absent key). The writer
// substitutes it with an empty string; it must never reach the sheet.
const BlankSentinel = "（空白）"

// Entry is one rule of the mapping definition: a schema field name, its
// target cell, and an optional enumerated value set.
type Entry struct {
	Name    string   `json:"name"`
	Cell    string   `json:"cell"`
	Options []string `json:"options,omitempty"`
}

// Mapping is the ordered, uniquely-keyed collection of entries. Order is
// the definition-file order and drives extraction/reconciliation prompts;
// uniqueness of names is invariant (a duplicate line replaces in place).
type Mapping struct {
	entries []Entry
	index   map[string]int
}

var cellPattern = regexp.MustCompile(`^[A-Za-z]+[0-9]+$`)

// ParseError reports a definition text with no usable lines.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("mapping parse error: %s", e.Reason)
}

// Parse reads a line-oriented mapping definition:
//
//	項目名,セル
//	項目名,セル,選択肢1|選択肢2|選択肢3
//
// Blank lines and lines starting with # are ignored. A line that cannot be
// decomposed into at least {name, cell} is skipped with a warning rather
// than aborting the load; Parse fails only when nothing parses at all.
func Parse(text string) (*Mapping, error) {
	m := &Mapping{index: make(map[string]int)}

	for lineNo, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, ",", 3)
		if len(parts) < 2 {
			log.Printf("⚠️  mapping.txt %d行目を読み飛ばしました（項目名とセルが必要です）: %q", lineNo+1, line)
			continue
		}

		name := strings.TrimSpace(parts[0])
		cell := strings.TrimSpace(parts[1])
		if name == "" || !cellPattern.MatchString(cell) {
			log.Printf("⚠️  mapping.txt %d行目を読み飛ばしました（セル指定が不正です）: %q", lineNo+1, line)
			continue
		}

		var options []string
		if len(parts) == 3 {
			for _, opt := range strings.Split(parts[2], "|") {
				if opt = strings.TrimSpace(opt); opt != "" {
					options = append(options, opt)
				}
			}
		}

		m.put(Entry{Name: name, Cell: cell, Options: options})
	}

	if m.Len() == 0 {
		return nil, &ParseError{Reason: "有効な行がありません"}
	}
	return m, nil
}

func (m *Mapping) put(e Entry) {
	if i, ok := m.index[e.Name]; ok {
		m.entries[i] = e
		return
	}
	m.index[e.Name] = len(m.entries)
	m.entries = append(m.entries, e)
}

// Entries returns the entries in definition order. Callers must not mutate
// the returned slice.
func (m *Mapping) Entries() []Entry {
	return m.entries
}

// Get looks up an entry by field name.
func (m *Mapping) Get(name string) (Entry, bool) {
	i, ok := m.index[name]
	if !ok {
		return Entry{}, false
	}
	return m.entries[i], true
}

// Len reports the number of entries.
func (m *Mapping) Len() int {
	return len(m.entries)
}

// Serialize renders the mapping back to definition-file form. Parsing the
// result yields an identical mapping (same key set, cells and order).
func (m *Mapping) Serialize() string {
	var b strings.Builder
	for _, e := range m.entries {
		b.WriteString(e.Name)
		b.WriteString(",")
		b.WriteString(e.Cell)
		if len(e.Options) > 0 {
			b.WriteString(",")
			b.WriteString(strings.Join(e.Options, "|"))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FieldDescriptors renders each entry as a reconciliation prompt line,
// annotating constrained fields with their allowed values:
//
//	要介護度 (選択肢: 要介護1、要介護2、要介護3)
func (m *Mapping) FieldDescriptors() []string {
	descriptors := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		if len(e.Options) > 0 {
			descriptors = append(descriptors, fmt.Sprintf("%s (選択肢: %s)", e.Name, strings.Join(e.Options, "、")))
		} else {
			descriptors = append(descriptors, e.Name)
		}
	}
	return descriptors
}
