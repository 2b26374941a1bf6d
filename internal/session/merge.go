package session

// Merge folds an authoritative update into local and returns the new session.
//
// Scalar fields present in remote overwrite local. Mapping fields are
// deep-merged: the incoming side wins per leaf key, nested mappings are
// merged recursively, and keys missing from remote are kept. A flag present
// on either side is present in the result.
func Merge(local Session, remote Update) Session {
	out := local.Clone()

	if remote.CurrentAct != nil {
		out.CurrentAct = *remote.CurrentAct
		if out.CurrentAct < 1 {
			out.CurrentAct = 1
		}
	}
	if remote.LastScene != nil {
		out.LastScene = cloneString(remote.LastScene)
	}
	if remote.Branch != nil {
		out.Branch = cloneString(remote.Branch)
	}
	if remote.EndingChoice != nil {
		out.EndingChoice = cloneString(remote.EndingChoice)
	}
	if remote.EndedAt != nil {
		t := *remote.EndedAt
		out.EndedAt = &t
	}

	for key, rec := range remote.ProgressFlags {
		existing, ok := out.ProgressFlags[key]
		if !ok {
			out.ProgressFlags[key] = FlagRecord(cloneMap(rec))
			continue
		}
		out.ProgressFlags[key] = FlagRecord(deepMerge(existing, rec))
	}
	out.Choices = deepMerge(out.Choices, remote.Choices)
	out.Inventory = deepMerge(out.Inventory, remote.Inventory)

	return out
}

// MergeSession merges a full remote session into local.
func MergeSession(local, remote Session) Session {
	return Merge(local, remote.AsUpdate())
}

// ApplyLocal folds a locally produced delta into local.
//
// Unlike Merge, an existing flag is never overwritten by the client and
// current_act never decreases.
func ApplyLocal(local Session, delta Update) Session {
	filtered := delta
	if len(delta.ProgressFlags) > 0 {
		filtered.ProgressFlags = make(map[string]FlagRecord, len(delta.ProgressFlags))
		for key, rec := range delta.ProgressFlags {
			if local.HasFlag(key) {
				continue
			}
			filtered.ProgressFlags[key] = rec
		}
	}
	if delta.CurrentAct != nil && *delta.CurrentAct < local.CurrentAct {
		filtered.CurrentAct = nil
	}
	return Merge(local, filtered)
}

// Replace returns a normalized copy of an authoritative session. It is used
// for explicit resets where flags may legitimately disappear.
func Replace(remote Session) Session {
	return remote.Clone()
}

// deepMerge merges src into dst and returns dst. dst may be nil.
func deepMerge(dst map[string]any, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, sv := range src {
		srcMap, srcIsMap := asMap(sv)
		dstMap, dstIsMap := asMap(dst[k])
		switch {
		case srcIsMap && dstIsMap:
			dst[k] = deepMerge(cloneMap(dstMap), srcMap)
		default:
			dst[k] = cloneValue(sv)
		}
	}
	return dst
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case FlagRecord:
		return map[string]any(m), true
	default:
		return nil, false
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case FlagRecord:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	default:
		return val
	}
}
