package operator

import (
	"sort"

	"github.com/aalhour/extentstore/internal/extent"
	"github.com/aalhour/extentstore/internal/typeregistry"
)

// maxExtentBytes caps how large an operator grows its accumulated
// output extent before returning it to the caller.
const maxExtentBytes = 96 * 1024

// Iterator is the pull interface every operator and source
// implements: GetExtent returns the next batch of rows, or
// ErrNoMoreExtents once exhausted. An Iterator never returns a nil
// extent with a nil error.
type Iterator interface {
	GetExtent() (*extent.Extent, error)
}

// extentBytes approximates an extent's in-memory footprint for the
// maxExtentBytes flush threshold.
func extentBytes(e *extent.Extent) int {
	if e == nil {
		return 0
	}
	return len(e.Fixed) + len(e.Variable)
}

// renamedField copies f under a new output name, dropping its packing
// hints: derived operator output types are not written through the
// same relative/unique/scale packing as their source, since those
// hints are tied to the field's original name and record position.
func renamedField(f typeregistry.Field, newName string) typeregistry.Field {
	return typeregistry.Field{Name: newName, Type: f.Type, Nullable: f.Nullable}
}

// sortedKeys returns m's keys in sorted order, giving operators that
// iterate a map (column renames, equality columns) deterministic
// output field ordering.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
