package instancecache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Config is one entry of a live, reloadable configuration list (a DAG
// stage definition, a visualiser binding, …). It is deliberately a loose
// map so the cache stays generic across the different config shapes the
// control plane reconciles (visualisation bindings today; nothing else
// prevents reuse for others).
type Config map[string]any

// canonicalJSON serialises v with sorted map keys so semantically
// identical configs always hash the same way regardless of field order.
func canonicalJSON(v any) string {
	b, _ := json.Marshal(sortedAny(v))
	return string(b)
}

// sortedAny recursively converts maps into a deterministically ordered
// representation before marshalling, since encoding/json already sorts
// map[string]T keys but nested map[string]any values benefit from being
// walked explicitly for clarity and to match the canonical-JSON helper
// the cache is grounded on.
func sortedAny(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(t))
		for _, k := range keys {
			out[k] = sortedAny(t[k])
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = sortedAny(e)
		}
		return out
	default:
		return v
	}
}

// StableKey computes the identity key of cfg: explicit "id", else "name",
// else "type"+canonical(variables).
func StableKey(cfg Config) string {
	if id, ok := cfg["id"]; ok {
		return fmt.Sprintf("id:%v", id)
	}
	if name, ok := cfg["name"]; ok {
		return fmt.Sprintf("name:%v", name)
	}
	typ, _ := cfg["type"].(string)
	if typ == "" {
		typ = "unknown"
	}
	return fmt.Sprintf("%s|vars:%s", typ, canonicalJSON(cfg["variables"]))
}

// ConfigHash hashes everything in cfg except the identity fields (id,
// name), so changing only identity never trips a reconfigure/rebuild.
func ConfigHash(cfg Config) string {
	filtered := make(Config, len(cfg))
	for k, v := range cfg {
		if k == "id" || k == "name" {
			continue
		}
		filtered[k] = v
	}
	sum := sha256.Sum256([]byte(canonicalJSON(filtered)))
	return hex.EncodeToString(sum[:16])
}
