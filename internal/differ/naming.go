package differ

import "github.com/ddlsync/ddlsync/internal/registry"

// segment is one contribution to the generated migration file's name,
// tagged with the kind of change that produced it. Tables use create_,
// remove_, modify_ and rename_; views, indexes and triggers use
// underscore prefixes such as create_view_ and create_index_; only
// virtual tables use hyphenated prefixes (create-virtual_,
// remove-virtual_, modify-virtual_).
type segment struct {
	prefix string
	name   string
}

func (s segment) String() string {
	return s.prefix + s.name
}

// buildSegments renders a slice of segment into the final joined,
// truncated file-name fragment (registry.BuildName performs the join
// and truncation).
func buildSegments(segs []segment) string {
	strs := make([]string, len(segs))
	for i, s := range segs {
		strs[i] = s.String()
	}
	return registry.BuildName(strs)
}
