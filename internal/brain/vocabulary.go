package brain

import "strings"

// Vocabulary is the ordered, closed set of waypoint names the robots know.
type Vocabulary struct {
	names []string
	index map[string]bool
}

func NewVocabulary(names []string) Vocabulary {
	v := Vocabulary{index: make(map[string]bool, len(names))}
	for _, n := range names {
		key := normalizeWaypoint(n)
		if key == "" || v.index[key] {
			continue
		}
		v.index[key] = true
		v.names = append(v.names, key)
	}
	return v
}

func (v Vocabulary) Names() []string {
	return append([]string(nil), v.names...)
}

func (v Vocabulary) Len() int {
	return len(v.names)
}

func (v Vocabulary) Contains(name string) bool {
	return v.index[normalizeWaypoint(name)]
}

// Filter keeps the names that are in the vocabulary, normalized and
// de-duplicated, in input order.
func (v Vocabulary) Filter(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		key := normalizeWaypoint(n)
		if !v.index[key] || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}

// Match returns every waypoint whose spoken form ("meeting room a") appears
// in text, in vocabulary order.
func (v Vocabulary) Match(text string) []string {
	lowered := strings.ToLower(text)
	out := make([]string, 0)
	for _, name := range v.names {
		if strings.Contains(lowered, strings.ReplaceAll(name, "_", " ")) {
			out = append(out, name)
		}
	}
	return out
}

func normalizeWaypoint(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "_")
}
