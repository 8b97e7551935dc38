package player

import (
	"fmt"
	"sort"
	"strings"
)

// Column names of the identity fields in a season statistics table.
const (
	ColumnName        = "Player"
	ColumnPosition    = "Pos"
	ColumnClub        = "Squad"
	ColumnCompetition = "Comp"
	ColumnMinutes     = "Min"
)

// UnknownPosition is the primary position of a record with no descriptor.
const UnknownPosition = "Unknown"

// Record is one player-season row. Stats holds numeric columns only; a
// missing value is an absent key.
type Record struct {
	Name        string
	Position    string
	Club        string
	Competition string
	Stats       map[string]float64
}

func (r Record) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("player name is required")
	}
	return nil
}

// Stat returns the value of a numeric column and whether it is present.
func (r Record) Stat(column string) (float64, bool) {
	v, ok := r.Stats[column]
	return v, ok
}

// PrimaryPosition returns the first position token of the record.
func (r Record) PrimaryPosition() string {
	return PrimaryPosition(r.Position)
}

func (r Record) Clone() Record {
	out := r
	out.Stats = make(map[string]float64, len(r.Stats))
	for k, v := range r.Stats {
		out.Stats[k] = v
	}
	return out
}

// PrimaryPosition takes the first comma separated token of a descriptor
// such as "FW,MF". Empty descriptors map to UnknownPosition.
func PrimaryPosition(descriptor string) string {
	head, _, _ := strings.Cut(descriptor, ",")
	head = strings.TrimSpace(head)
	if head == "" {
		return UnknownPosition
	}
	return head
}

// Table is an immutable snapshot of season rows plus the column set that
// was present in the source.
type Table struct {
	Columns []string
	Records []Record
}

func (t Table) Len() int {
	return len(t.Records)
}

// HasColumn reports whether the source carried the named column, whether
// or not individual rows have a value for it.
func (t Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

func (t Table) Clone() Table {
	out := Table{
		Columns: make([]string, len(t.Columns)),
		Records: make([]Record, len(t.Records)),
	}
	copy(out.Columns, t.Columns)
	for i, r := range t.Records {
		out.Records[i] = r.Clone()
	}
	return out
}

// Competitions returns the distinct non-empty competitions, sorted.
func (t Table) Competitions() []string {
	return t.distinct(func(r Record) string { return r.Competition })
}

// Clubs returns the distinct non-empty clubs, sorted.
func (t Table) Clubs() []string {
	return t.distinct(func(r Record) string { return r.Club })
}

func (t Table) distinct(field func(Record) string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, r := range t.Records {
		v := strings.TrimSpace(field(r))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Criteria narrows records by case-insensitive substring on club and
// competition. Empty fields match everything.
type Criteria struct {
	Club        string
	Competition string
}

func (c Criteria) Match(r Record) bool {
	if !containsFold(r.Club, c.Club) {
		return false
	}
	return containsFold(r.Competition, c.Competition)
}

func containsFold(s, sub string) bool {
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
