package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/agnivade/levenshtein"
)

// validateConfigKeys checks a decoded config document against the config
// struct's declared fields and reports unknown keys, suggesting the closest
// known key when a likely typo is found. The caller decodes the raw bytes so
// YAML and TOML files go through the same check.
func validateConfigKeys(raw map[string]any) []string {
	known := knownKeys(reflect.TypeOf(configContents{}))

	var failures []string
	for group, v := range raw {
		groupKeys, ok := known[group]
		if !ok {
			failures = append(failures, unknownKeyMessage(group, keysOf(known)))
			continue
		}
		fields, isMap := v.(map[string]any)
		if !isMap {
			continue
		}
		for key := range fields {
			if !groupKeys.contains(key) {
				failures = append(failures, unknownKeyMessage(group+"."+key, groupKeys.prefixed(group)))
			}
		}
	}
	return failures
}

type keySet []string

func (ks keySet) contains(k string) bool {
	for _, key := range ks {
		if key == k {
			return true
		}
	}
	return false
}

func (ks keySet) prefixed(group string) []string {
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = group + "." + k
	}
	return out
}

func keysOf(m map[string]keySet) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// knownKeys maps each top-level group to the yaml field names it accepts.
func knownKeys(t reflect.Type) map[string]keySet {
	known := make(map[string]keySet)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		group := yamlName(field)
		var keys keySet
		for j := 0; j < field.Type.NumField(); j++ {
			keys = append(keys, yamlName(field.Type.Field(j)))
		}
		known[group] = keys
	}
	return known
}

func yamlName(f reflect.StructField) string {
	tag := f.Tag.Get("yaml")
	if tag == "" {
		return f.Name
	}
	return strings.Split(tag, ",")[0]
}

// unknownKeyMessage builds the failure message for key, appending a "did you
// mean" hint when a candidate is within a small edit distance.
func unknownKeyMessage(key string, candidates []string) string {
	const maxDistance = 5
	best := ""
	bestDistance := maxDistance + 1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(strings.ToLower(key), strings.ToLower(c))
		if d < bestDistance {
			best, bestDistance = c, d
		}
	}
	if best != "" {
		return fmt.Sprintf("unknown config key %q (did you mean %q?)", key, best)
	}
	return fmt.Sprintf("unknown config key %q", key)
}
