package normalization

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"erisextract/normalization/algorithms"
)

// DefaultCountryCutoff is the minimum close-match ratio accepted by Normalize.
const DefaultCountryCutoff = 0.7

// CountryEntry maps one spelling of a country to its code.
type CountryEntry struct {
	Name string
	Code string
}

// defaultCountries lists the spellings found in affiliate columns. Order matters:
// Extract returns the first entry contained in its input.
var defaultCountries = []CountryEntry{
	{"south africa", "ZA"}, {"afrique du sud", "ZA"},
	{"mauritius", "MU"}, {"maurice", "MU"},
	{"cameroon", "CM"}, {"cameroun", "CM"},
	{"cote divoire", "CI"}, {"cote d'ivoire", "CI"}, {"ivory coast", "CI"}, {"cote ivoire", "CI"},
	{"senegal", "SN"}, {"sénégal", "SN"},
	{"reunion", "RE"}, {"réunion", "RE"},
	{"eswatini", "SZ"},
	{"togo", "TG"},
	{"ghana", "GH"},
	{"uganda", "UG"},
	{"congo", "CG"}, {"congo brazzaville", "CG"}, {"congo brazza", "CG"},
	{"ethiopia", "ET"}, {"ethiopie", "ET"},
	{"tanzania", "TZ"}, {"tanzanie", "TZ"},
	{"gabon", "GA"},
	{"guinea", "GN"}, {"guinée", "GN"},
	{"equatorial guinea", "GQ"},
	{"guinée équatoriale", "GQ"},
	{"guinée equitoriale", "GQ"},
	{"kenya", "KE"},
	{"mayotte", "YT"},
	{"malawi", "MW"},
	{"morocco", "MA"}, {"maroc", "MA"},
	{"mozambique", "MZ"},
	{"tunisia", "TN"}, {"tunisie", "TN"},
	{"namibia", "NA"}, {"namibie", "NA"},
	{"nigeria", "NG"}, {"nigéria", "NG"},
	{"zambia", "ZM"}, {"zambie", "ZM"},
	{"zimbabwe", "ZW"},
	{"madagascar", "MG"},
	{"madagasikara", "MG"},
	{"rdc", "CD"}, {"democratic republic of congo", "CD"},
	{"burkina faso", "BF"},
	{"erythree", "ER"}, {"érythrée", "ER"},
	{"chad", "TD"}, {"tchad", "TD"},
	{"mali", "ML"},
	{"angola", "AO"},
	{"egypt", "EG"}, {"egypte", "EG"},
	{"botswana", "BW"},
	{"centafrique", "CE"},
	{"central african republic", "CE"},
}

// CountryTable is an immutable country lookup. It is safe for concurrent use.
type CountryTable struct {
	entries []CountryEntry
	folded  []string
	names   []string
	codes   map[string]string
	cutoff  float64
}

// NewCountryTable builds a table from entries kept in the given order.
// Names are lower-cased; a repeated name keeps its first code.
func NewCountryTable(entries []CountryEntry, cutoff float64) *CountryTable {
	t := &CountryTable{
		entries: make([]CountryEntry, 0, len(entries)),
		codes:   make(map[string]string, len(entries)),
		cutoff:  cutoff,
	}
	for _, e := range entries {
		name := strings.ToLower(strings.TrimSpace(e.Name))
		if _, dup := t.codes[name]; dup || name == "" {
			continue
		}
		t.entries = append(t.entries, CountryEntry{Name: name, Code: e.Code})
		t.folded = append(t.folded, foldDiacritics(name))
		t.names = append(t.names, name)
		t.codes[name] = e.Code
	}
	return t
}

// DefaultCountryTable returns the table of affiliate countries.
func DefaultCountryTable() *CountryTable {
	return NewCountryTable(defaultCountries, DefaultCountryCutoff)
}

// Entries returns a copy of the entries in table order.
func (t *CountryTable) Entries() []CountryEntry {
	out := make([]CountryEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Normalize maps an isolated country name to its title-cased canonical name:
// exact case-insensitive match first, then the closest name whose ratio clears
// the cutoff. Without a match the input is returned unchanged.
func (t *CountryTable) Normalize(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	if _, ok := t.codes[lower]; ok {
		return t.titled(lower)
	}
	if match, ok := algorithms.CloseMatch(lower, t.names, t.cutoff); ok {
		return t.titled(match)
	}
	return name
}

// Extract finds a country embedded in a longer affiliate string, ignoring case
// and diacritics. The first entry in table order contained in the input wins.
func (t *CountryTable) Extract(affiliate string) (string, bool) {
	folded := foldDiacritics(strings.ToLower(affiliate))
	for i, name := range t.folded {
		if strings.Contains(folded, name) {
			return t.titled(t.entries[i].Name), true
		}
	}
	return "", false
}

// Code returns the code of a canonical country name, case-insensitively.
func (t *CountryTable) Code(name string) (string, bool) {
	code, ok := t.codes[strings.ToLower(name)]
	return code, ok
}

// titled capitalises every word and the letter after an apostrophe:
// "cote d'ivoire" -> "Cote D'Ivoire".
func (t *CountryTable) titled(name string) string {
	// a Caser is stateful, one per call keeps the table safe for concurrent use
	out := []rune(cases.Title(language.Und).String(name))
	for i := 1; i < len(out); i++ {
		if out[i-1] == '\'' {
			out[i] = unicode.ToUpper(out[i])
		}
	}
	return string(out)
}

// asciiQuotes maps typographic apostrophes and quotes to their ASCII form.
func asciiQuotes(r rune) rune {
	switch r {
	case '\u2018', '\u2019', '\u02BC', '\u00B4', '`':
		return '\''
	case '\u201C', '\u201D':
		return '"'
	}
	return r
}

// foldDiacritics strips combining marks after NFD decomposition and
// straightens quotes: "Côte d’Ivoire" -> "Cote d'Ivoire".
func foldDiacritics(s string) string {
	tr := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), runes.Map(asciiQuotes), norm.NFC)
	out, _, err := transform.String(tr, s)
	if err != nil {
		return s
	}
	return out
}
