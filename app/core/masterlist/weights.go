package masterlist

import "strings"

// TagWeights holds the default pressure contribution per tag. An entry
// without an explicit weight scores the sum of its tags' defaults.
var TagWeights = map[string]int{
	"texture":        2,
	"mesh":           1,
	"script-heavy":   5,
	"scripted-quest": 3,
	"npc-overhaul":   3,
	"animation":      2,
	"enb":            8,
	"weather":        3,
	"survival":       2,
	"perk-overhaul":  2,
	"ui":             1,
}

// BaselineWeight is the score for plugin-like files that carry no explicit
// weight and no weighted tags. Archives score zero.
const BaselineWeight = 1

// deriveWeight resolves an entry's weight: the explicit value when declared,
// otherwise the sum of its tags' default weights, otherwise the baseline for
// its file class.
func deriveWeight(entry *Entry) int {
	if entry.Weight != nil {
		return *entry.Weight
	}
	total := 0
	for _, tag := range entry.Tags {
		total += TagWeights[tag]
	}
	if total > 0 {
		return total
	}
	return FallbackWeight(entry.Name)
}

// FallbackWeight is the class baseline for a name with no weight data:
// archives cost nothing, everything else costs BaselineWeight.
func FallbackWeight(name string) int {
	if strings.HasSuffix(name, ".bsa") || strings.HasSuffix(name, ".ba2") {
		return 0
	}
	return BaselineWeight
}
