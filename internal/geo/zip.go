// Package geo resolves US locations locally: state codes, free-text
// location parsing, and a city-to-ZIP index. Nothing here touches the
// network.
package geo

import (
	_ "embed"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

//go:embed data/zips.csv
var seedZips []byte

// ZipRow is one row of a ZIP CSV: header city,state,zip.
type ZipRow struct {
	City  string `csv:"city"`
	State string `csv:"state"`
	Zip   string `csv:"zip"`
}

// ZipIndex maps a city and state to a representative ZIP code.
type ZipIndex struct {
	// city key -> state code -> zip
	m map[string]map[string]string
}

// NewZipIndex returns an index seeded with major US cities.
func NewZipIndex() (*ZipIndex, error) {
	idx := &ZipIndex{m: make(map[string]map[string]string)}
	if err := idx.load(seedZips); err != nil {
		return nil, eris.Wrap(err, "geo: load seed zips")
	}
	return idx, nil
}

// LoadFile adds or overrides entries from a CSV file.
func (z *ZipIndex) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "geo: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return z.LoadCSV(f)
}

// LoadCSV adds or overrides entries from CSV data.
func (z *ZipIndex) LoadCSV(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return eris.Wrap(err, "geo: read zip csv")
	}
	return z.load(data)
}

func (z *ZipIndex) load(data []byte) error {
	var rows []ZipRow
	if err := csvutil.Unmarshal(data, &rows); err != nil {
		return eris.Wrap(err, "geo: decode zip csv")
	}
	for _, r := range rows {
		z.Add(r.City, r.State, r.Zip)
	}
	return nil
}

// Add sets the ZIP for city and state. Rows with an unknown state or a ZIP
// that is not five digits are ignored.
func (z *ZipIndex) Add(city, state, zip string) {
	code := StateCode(state)
	ck := CityKey(city)
	zip = strings.TrimSpace(zip)
	if code == "" || ck == "" || !isZip5(zip) {
		return
	}
	states, ok := z.m[ck]
	if !ok {
		states = make(map[string]string)
		z.m[ck] = states
	}
	states[code] = zip
}

// Lookup returns the ZIP for city and state, or "" when unknown. With no
// state, a city that exists in exactly one state still resolves.
func (z *ZipIndex) Lookup(city, state string) string {
	if z == nil {
		return ""
	}
	ck := CityKey(city)
	if ck == "" {
		return ""
	}
	states := z.m[ck]
	if code := StateCode(state); code != "" {
		return states[code]
	}
	if len(states) == 1 {
		for _, zip := range states {
			return zip
		}
	}
	return ""
}

// Len returns the number of city/state entries.
func (z *ZipIndex) Len() int {
	n := 0
	for _, states := range z.m {
		n += len(states)
	}
	return n
}

// CityKey folds a city name for matching: diacritics and punctuation are
// dropped, case is folded, and "saint" is written "st".
func CityKey(city string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, city)
	if err != nil {
		folded = city
	}
	folded = strings.ToLower(folded)
	folded = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, folded)
	fields := strings.Fields(folded)
	for i, f := range fields {
		if f == "saint" {
			fields[i] = "st"
		}
	}
	return strings.Join(fields, " ")
}

func isZip5(s string) bool {
	if len(s) != 5 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
