package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// matricRe matches the institutional matric format: campus code, programme,
// two-digit entry year, serial. Example: F/ND/23/3210011.
var matricRe = regexp.MustCompile(`^([A-Z])/([A-Z]{2,4})/(\d{2})/(\d{3,8})$`)

// ParsedMatric holds the structured data parsed from a matric number.
type ParsedMatric struct {
	Campus    string
	Programme string
	EntryYear int // full year, e.g. 2023
	Serial    string
}

// ParseMatric extracts campus, programme, entry year, and serial from a raw
// matric number. Case and surrounding whitespace are normalized first;
// interior spaces around the separators are tolerated.
func ParseMatric(raw string) (ParsedMatric, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = regexp.MustCompile(`\s*/\s*`).ReplaceAllString(s, "/")

	m := matricRe.FindStringSubmatch(s)
	if m == nil {
		return ParsedMatric{}, fmt.Errorf("unable to parse matric number: %q", raw)
	}

	yy, err := strconv.Atoi(m[3])
	if err != nil {
		return ParsedMatric{}, fmt.Errorf("unable to parse entry year in %q", raw)
	}

	return ParsedMatric{
		Campus:    m[1],
		Programme: m[2],
		EntryYear: 2000 + yy,
		Serial:    m[4],
	}, nil
}

// Normalize returns the canonical form of a matric number, or an error when
// it does not parse.
func Normalize(raw string) (string, error) {
	p, err := ParseMatric(raw)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%02d/%s", p.Campus, p.Programme, p.EntryYear%100, p.Serial), nil
}
