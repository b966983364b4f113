package ranker

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-scrape-cars/parser"
)

// CandidateKind tags how much of a pick could be recovered from the reply.
type CandidateKind int

const (
	// WellFormed carries a listing identifier.
	WellFormed CandidateKind = iota
	// Unresolved has no identifier but describes the car by its fields.
	Unresolved
	// ParseFailure is an element or line that could not be interpreted.
	ParseFailure
)

func (k CandidateKind) String() string {
	switch k {
	case WellFormed:
		return "well_formed"
	case Unresolved:
		return "unresolved"
	default:
		return "parse_failure"
	}
}

// Candidate is one pick as read from the reply, before reconciliation.
type Candidate struct {
	Kind   CandidateKind
	ID     string
	Rank   int
	Reason string
	Make   string
	Model  string
	Year   int
	Price  float64
	Raw    string
}

// ErrNoCandidates is returned when the reply holds neither JSON nor
// recognisable pick lines.
var ErrNoCandidates = errors.New("reply contains no picks")

var (
	fenceRegexp = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")
	lineRegexp  = regexp.MustCompile(`(?i)^\s*(?:#\s*)?(\d+)?[.):]?\s*(?:\[([A-Za-z0-9_-]+)\]|id\s*[:=]\s*([A-Za-z0-9_-]+))\s*[-:–—]?\s*(.*)$`)
	rankedLine  = regexp.MustCompile(`^\s*(?:#\s*)?\d+[.):]`)

	idKeys     = []string{"id", "listing_id", "listingid"}
	rankKeys   = []string{"rk", "rank"}
	reasonKeys = []string{"rsn", "reason", "why"}
	makeKeys   = []string{"mk", "make"}
	modelKeys  = []string{"md", "model"}
	yearKeys   = []string{"yr", "year"}
	priceKeys  = []string{"pr", "price"}
	arrayKeys  = []string{"picks", "results", "recommendations", "cars", "listings"}
)

// ParseResponse extracts candidates from a reply. It accepts a bare JSON
// array, a fenced block, an array embedded in prose, an object wrapping an
// array, and falls back to lines such as "1. [A1] reason".
func ParseResponse(text string) ([]Candidate, error) {
	text = strings.TrimSpace(text)
	if m := fenceRegexp.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	if elems, ok := decodeArray(text); ok {
		out := make([]Candidate, 0, len(elems))
		for _, raw := range elems {
			out = append(out, candidateFromJSON(raw))
		}
		return out, nil
	}

	if out := parseLines(text); len(out) > 0 {
		return out, nil
	}
	return nil, ErrNoCandidates
}

func decodeArray(text string) ([]json.RawMessage, bool) {
	if elems, ok := decodeArrayValue([]byte(text)); ok {
		return elems, true
	}
	// Try each opening bracket in turn, decoding a single value and ignoring
	// whatever prose follows it.
	for i, r := range text {
		if r != '[' && r != '{' {
			continue
		}
		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(text[i:])).Decode(&raw); err != nil {
			continue
		}
		if elems, ok := decodeArrayValue(raw); ok {
			return elems, true
		}
	}
	return nil, false
}

func decodeArrayValue(data []byte) ([]json.RawMessage, bool) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err == nil {
		return elems, true
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, false
	}
	folded := foldKeys(obj)
	for _, key := range arrayKeys {
		if raw, ok := folded[key]; ok {
			if err := json.Unmarshal(raw, &elems); err == nil {
				return elems, true
			}
		}
	}
	for _, raw := range obj {
		if err := json.Unmarshal(raw, &elems); err == nil && len(elems) > 0 {
			return elems, true
		}
	}
	return nil, false
}

func foldKeys(obj map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(obj))
	for k, v := range obj {
		out[strings.ToLower(k)] = v
	}
	return out
}

func candidateFromJSON(raw json.RawMessage) Candidate {
	c := Candidate{Kind: ParseFailure, Raw: string(raw)}

	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		if id = strings.TrimSpace(id); id != "" {
			c.Kind = WellFormed
			c.ID = id
		}
		return c
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return c
	}
	fields := foldKeys(obj)

	c.ID = lookupString(fields, idKeys)
	c.Rank = lookupInt(fields, rankKeys)
	c.Reason = lookupString(fields, reasonKeys)
	c.Make = lookupString(fields, makeKeys)
	c.Model = lookupString(fields, modelKeys)
	c.Year = lookupInt(fields, yearKeys)
	c.Price = lookupFloat(fields, priceKeys)

	switch {
	case c.ID != "":
		c.Kind = WellFormed
	case c.Make != "" && c.Model != "":
		c.Kind = Unresolved
	}
	return c
}

func lookupString(fields map[string]json.RawMessage, keys []string) string {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return strings.TrimSpace(s)
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			return n.String()
		}
	}
	return ""
}

func lookupFloat(fields map[string]json.RawMessage, keys []string) float64 {
	s := lookupString(fields, keys)
	if s == "" {
		return 0
	}
	v, err := parser.NormalizePrice(s)
	if err != nil {
		return 0
	}
	return v
}

func lookupInt(fields map[string]json.RawMessage, keys []string) int {
	s := lookupString(fields, keys)
	if s == "" {
		return 0
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	v, err := parser.NormalizeInt(s)
	if err != nil {
		return 0
	}
	return v
}

func parseLines(text string) []Candidate {
	var out []Candidate
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		m := lineRegexp.FindStringSubmatch(trimmed)
		if m == nil {
			if rankedLine.MatchString(trimmed) {
				out = append(out, Candidate{Kind: ParseFailure, Raw: trimmed})
			}
			continue
		}
		c := Candidate{Kind: WellFormed, Raw: trimmed, Reason: strings.TrimSpace(m[4])}
		if m[2] != "" {
			c.ID = m[2]
		} else {
			c.ID = m[3]
		}
		if m[1] != "" {
			c.Rank, _ = strconv.Atoi(m[1])
		}
		out = append(out, c)
	}
	return out
}
