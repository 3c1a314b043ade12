package search

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/himanishpuri/MapVault/pkg/models"
)

// Op is a filter comparison.
type Op byte

const (
	OpEqual   Op = '='
	OpGreater Op = '>'
	OpLess    Op = '<'
)

// Filter is one FIELD<op>VALUE token. Field is lower-cased.
type Filter struct {
	Field string
	Op    Op
	Value string
}

// Query is a parsed search string.
type Query struct {
	Filters []Filter
	Text    string
}

func (q Query) Empty() bool {
	return len(q.Filters) == 0 && q.Text == ""
}

var filterToken = regexp.MustCompile(`(?:^|\s)([A-Za-z]+)([=<>])(\S+)`)

// ParseQuery splits raw into filter tokens and the remaining free text.
func ParseQuery(raw string) Query {
	var q Query
	var rest strings.Builder
	last := 0
	for _, m := range filterToken.FindAllStringSubmatchIndex(raw, -1) {
		rest.WriteString(raw[last:m[0]])
		rest.WriteByte(' ')
		last = m[1]
		q.Filters = append(q.Filters, Filter{
			Field: strings.ToLower(raw[m[2]:m[3]]),
			Op:    Op(raw[m[4]]),
			Value: raw[m[6]:m[7]],
		})
	}
	rest.WriteString(raw[last:])
	q.Text = strings.Join(strings.Fields(rest.String()), " ")
	return q
}

type fieldKind int

const (
	kindNever fieldKind = iota
	kindText
	kindTextList
	kindNumber
	kindDifficulty
)

type accessor struct {
	kind   fieldKind
	text   func(*models.MapRecord) string
	list   func(*models.MapRecord) []string
	number func(*models.MapRecord) float64
}

var (
	starAccessor = accessor{kind: kindNumber, number: func(r *models.MapRecord) float64 { return r.StarRating }}
	mapperAccess = accessor{kind: kindTextList, list: func(r *models.MapRecord) []string { return r.Mappers }}
	diffAccessor = accessor{kind: kindDifficulty, number: func(r *models.MapRecord) float64 { return float64(r.Difficulty) }}
	titleAccess  = accessor{kind: kindText, text: func(r *models.MapRecord) string { return r.Title }}
	statusAccess = accessor{kind: kindText, text: func(r *models.MapRecord) string { return string(r.OnlineStatus) }}
	notesAccess  = accessor{kind: kindNumber, number: func(r *models.MapRecord) float64 { return float64(r.NoteCount) }}
	lengthAccess = accessor{kind: kindNumber, number: func(r *models.MapRecord) float64 { return float64(r.Duration) }}
	idAccessor   = accessor{kind: kindText, text: func(r *models.MapRecord) string { return r.ID }}
)

var fields = map[string]accessor{
	"star":         starAccessor,
	"starrating":   starAccessor,
	"author":       mapperAccess,
	"mapper":       mapperAccess,
	"mappers":      mapperAccess,
	"diff":         diffAccessor,
	"difficulty":   diffAccessor,
	"name":         titleAccess,
	"title":        titleAccess,
	"status":       statusAccess,
	"onlinestatus": statusAccess,
	"notes":        notesAccess,
	"notecount":    notesAccess,
	"length":       lengthAccess,
	"duration":     lengthAccess,
	"id":           idAccessor,
}

// Fields lists the recognized filter names.
func Fields() []string {
	out := make([]string, 0, len(fields))
	for name := range fields {
		out = append(out, name)
	}
	return out
}

func toNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// matcher is a compiled query. It owns a case folder, which is stateful, so
// a matcher must not be shared between goroutines.
type matcher struct {
	filters []compiledFilter
	text    string
	fold    cases.Caser
}

type compiledFilter struct {
	Filter
	acc   accessor
	value string  // case-folded
	num   float64 // NaN when the value is not numeric
}

func compile(q Query) *matcher {
	m := &matcher{fold: cases.Fold()}
	m.text = m.fold.String(q.Text)
	for _, f := range q.Filters {
		cf := compiledFilter{Filter: f, acc: fields[f.Field], value: m.fold.String(f.Value), num: toNumber(f.Value)}
		if cf.acc.kind == kindDifficulty && math.IsNaN(cf.num) {
			if d, err := models.ParseDifficulty(f.Value); err == nil {
				cf.num = float64(d)
			}
		}
		m.filters = append(m.filters, cf)
	}
	return m
}

func (m *matcher) match(r *models.MapRecord) bool {
	for _, f := range m.filters {
		if !m.matchFilter(f, r) {
			return false
		}
	}
	if m.text == "" {
		return true
	}
	if strings.Contains(m.fold.String(r.Title), m.text) {
		return true
	}
	for _, name := range r.Mappers {
		if strings.Contains(m.fold.String(name), m.text) {
			return true
		}
	}
	return false
}

func (m *matcher) matchFilter(f compiledFilter, r *models.MapRecord) bool {
	if f.acc.kind == kindNever {
		return false
	}
	if f.Op == OpEqual {
		switch f.acc.kind {
		case kindText:
			return m.fold.String(f.acc.text(r)) == f.value
		case kindTextList:
			for _, s := range f.acc.list(r) {
				if m.fold.String(s) == f.value {
					return true
				}
			}
			return false
		default:
			return f.acc.number(r) == f.num
		}
	}

	a := m.numeric(f.acc, r)
	switch f.Op {
	case OpGreater:
		return a > f.num
	case OpLess:
		return a < f.num
	}
	return false
}

// numeric coerces an attribute for ordering comparisons. NaN never compares.
func (m *matcher) numeric(acc accessor, r *models.MapRecord) float64 {
	switch acc.kind {
	case kindText:
		return toNumber(acc.text(r))
	case kindTextList:
		if l := acc.list(r); len(l) == 1 {
			return toNumber(l[0])
		}
		return math.NaN()
	case kindNumber, kindDifficulty:
		return acc.number(r)
	}
	return math.NaN()
}
