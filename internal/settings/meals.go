package settings

import (
	"fmt"
	"strings"
)

// Friendly aliases accepted alongside the canonical meal names.
var mealAliases = map[string]string{
	"breakfast": "Nonushta",
	"lunch":     "Tushlik",
	"dinner":    "Kechki ovqat",
	"nonushta":  "Nonushta",
	"tushlik":   "Tushlik",
	"kechki":    "Kechki ovqat",
}

// ResolveMeals maps operator input (aliases or canonical names, any
// case) onto the canonical meal list, dropping duplicates and
// preserving canonical order. It fails when nothing resolves so a typo
// cannot silently clear the selection.
func ResolveMeals(keys, canonical []string) ([]string, error) {
	seen := make(map[string]bool, len(keys))
	var unknown []string
	for _, key := range keys {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			continue
		}
		name := ""
		if alias := mealAliases[strings.ToLower(trimmed)]; alias != "" {
			name = matchCanonical(alias, canonical)
		}
		if name == "" {
			name = matchCanonical(trimmed, canonical)
		}
		if name == "" {
			unknown = append(unknown, trimmed)
			continue
		}
		seen[name] = true
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("no valid meals in %q: use breakfast, lunch, dinner or the exact names %s",
			strings.Join(unknown, " "), strings.Join(canonical, ", "))
	}
	out := make([]string, 0, len(seen))
	for _, meal := range canonical {
		if seen[meal] {
			out = append(out, meal)
		}
	}
	return out, nil
}

func matchCanonical(name string, canonical []string) string {
	for _, meal := range canonical {
		if strings.EqualFold(meal, name) {
			return meal
		}
	}
	return ""
}
