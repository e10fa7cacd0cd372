package ingest

import "sort"

// Manifest maps a checkout-relative path to the content fingerprint of the file.
type Manifest map[string]string

// Changed reports whether the file at relPath with hash differs from the manifest entry.
// Paths missing from the manifest are changed.
func (m Manifest) Changed(relPath, hash string) bool {
	prev, ok := m[relPath]
	return !ok || prev != hash
}

// Removed returns the paths of m, in ascending order, that current no longer lists.
func (m Manifest) Removed(current Manifest) []string {
	var removed []string
	for _, p := range m.Paths() {
		if _, ok := current[p]; !ok {
			removed = append(removed, p)
		}
	}
	return removed
}

// Paths returns the manifest paths in ascending order.
func (m Manifest) Paths() []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
