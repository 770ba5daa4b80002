package zipfsm

import "github.com/bmatcuk/doublestar/v4"

// Match returns the entries of the archive whose name matches the given
// doublestar glob pattern (supporting "**" for arbitrary-depth directory
// matches, as used by gitignore-style tooling). Entries are returned in
// central directory order.
func (a *Archive) Match(pattern string) ([]*StoredEntry, error) {
	var matched []*StoredEntry
	for _, e := range a.entries {
		ok, err := doublestar.Match(pattern, e.Name)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, e)
		}
	}
	return matched, nil
}
