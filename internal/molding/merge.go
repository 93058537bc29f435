package molding

import (
	"fmt"

	"github.com/agentic-research/remolder/internal/tree"
)

type mergeRemolder[T any] struct {
	name   string
	target target
	patch  map[string]any
}

// Merge builds a remolder that deep-merges the map in params "value" into the
// target, working directly on the format's algebra. Keys whose patch value is
// null are removed.
func Merge[T any](def Definition) (Remolder[T], error) {
	t, err := targetParam(def)
	if err != nil {
		return nil, err
	}
	value, err := valueParam(def)
	if err != nil {
		return nil, err
	}
	patch, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("value must be a map, got %s", tree.KindOf(value))
	}
	return &mergeRemolder[T]{name: def.String(), target: t, patch: patch}, nil
}

func (r *mergeRemolder[T]) String() string {
	return fmt.Sprintf("%s(merge %s)", r.name, r.target)
}

func (r *mergeRemolder[T]) Remold(alg tree.Algebra[T], document, metadata, _ T) (T, T, error) {
	merged, err := mergeInto(alg, tree.Root, pick(r.target, document, metadata), r.patch)
	if err != nil {
		return document, metadata, err
	}
	d, m := put(r.target, document, metadata, merged)
	return d, m, nil
}

func mergeInto[T any](alg tree.Algebra[T], path string, base T, patch map[string]any) (T, error) {
	entries, ok := alg.Map(base)
	if !ok && !tree.IsNull(alg, base) {
		var zero T
		return zero, fmt.Errorf("merge %s: target is a %s, not a map", path, alg.Kind(base))
	}
	out := make(map[string]T, len(entries)+len(patch))
	for k, v := range entries {
		out[k] = v
	}
	for _, k := range tree.SortedKeys(patch) {
		pv := patch[k]
		if pv == nil {
			delete(out, k)
			continue
		}
		if pm, isMap := pv.(map[string]any); isMap {
			if existing, has := out[k]; has && alg.Kind(existing) == tree.Map {
				merged, err := mergeInto(alg, tree.Child(path, k), existing, pm)
				if err != nil {
					var zero T
					return zero, err
				}
				out[k] = merged
				continue
			}
		}
		v, err := alg.FromInterchange(pv)
		if err != nil {
			var zero T
			return zero, err
		}
		out[k] = v
	}
	return alg.CreateMap(out)
}
