package feature

import "strings"

// Position codes with a dedicated statistic list. Every other code,
// goalkeepers included, falls back to the common list.
const (
	PositionForward    = "FW"
	PositionMidfielder = "MF"
	PositionDefender   = "DF"
	PositionGoalkeeper = "GK"
)

var forwardFeatures = []string{
	"Gls", "Ast", "G+A", "xG", "xAG", "npxG", "G-PK",
	"Sh", "SoT", "Sh/90", "SoT/90", "G-xG",
	"Touches", "Carries", "PrgC", "PrgR",
	"KP", "PPA", "CrsPA", "90s",
}

var midfielderFeatures = []string{
	"Gls", "Ast", "G+A", "xG", "xAG",
	"Cmp", "Att", "TotDist", "PrgDist",
	"KP", "1/3", "PPA", "PrgP",
	"Tkl", "TklW", "Int",
	"Touches", "Carries", "PrgC", "PrgR", "90s",
}

var defenderFeatures = []string{
	"Tkl", "TklW", "Def 3rd", "Mid 3rd", "Int", "Clr", "Err",
	"Cmp", "Att", "TotDist", "PrgDist", "PrgP",
	"Touches", "Carries", "PrgC",
	"Ast", "xAG", "90s",
}

var commonFeatures = []string{
	"Gls", "Ast", "G+A", "xG", "xAG",
	"Cmp", "Att", "PrgP",
	"Tkl", "TklW", "Int",
	"Touches", "Carries", "PrgC", "PrgR", "90s",
}

var byPosition = map[string][]string{
	PositionForward:    forwardFeatures,
	PositionMidfielder: midfielderFeatures,
	PositionDefender:   defenderFeatures,
}

// FeaturesFor returns the ordered statistic names used to compare players
// of the given position code. Matching is case-insensitive.
func FeaturesFor(position string) []string {
	key := strings.ToUpper(strings.TrimSpace(position))
	if list, ok := byPosition[key]; ok {
		return clone(list)
	}
	return Common()
}

// Common returns the generic fallback list.
func Common() []string {
	return clone(commonFeatures)
}

// Positions lists the codes that have a dedicated feature list.
func Positions() []string {
	return []string{PositionForward, PositionMidfielder, PositionDefender}
}

// Filter keeps the names accepted by has, in order, without duplicates.
func Filter(features []string, has func(string) bool) []string {
	out := make([]string, 0, len(features))
	seen := make(map[string]struct{}, len(features))
	for _, name := range features {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		if has != nil && !has(name) {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func clone(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
