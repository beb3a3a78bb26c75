package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Biomarker pairs a gene/marker name with its cycle-threshold reading.
type Biomarker struct {
	Gene string
	Ct   float64
}

// Biomarkers is an insertion-ordered gene -> Ct mapping. Setting an existing key
// overwrites its value in place.
type Biomarkers struct {
	entries []Biomarker
}

// NewBiomarkers builds a mapping from pairs, applying them in order.
func NewBiomarkers(pairs ...Biomarker) Biomarkers {
	var b Biomarkers
	for _, p := range pairs {
		b.Set(p.Gene, p.Ct)
	}
	return b
}

// Set inserts gene or overwrites its value.
func (b *Biomarkers) Set(gene string, ct float64) {
	for i := range b.entries {
		if b.entries[i].Gene == gene {
			b.entries[i].Ct = ct
			return
		}
	}
	b.entries = append(b.entries, Biomarker{Gene: gene, Ct: ct})
}

// Get returns the Ct value recorded for gene.
func (b Biomarkers) Get(gene string) (float64, bool) {
	for _, e := range b.entries {
		if e.Gene == gene {
			return e.Ct, true
		}
	}
	return 0, false
}

func (b Biomarkers) Len() int {
	return len(b.entries)
}

// Entries returns a copy of the pairs in insertion order.
func (b Biomarkers) Entries() []Biomarker {
	out := make([]Biomarker, len(b.entries))
	copy(out, b.entries)
	return out
}

// Joined renders the legacy single-string form, e.g. "N gene: 23.8, E gene: 25".
// An empty mapping renders as N/A.
func (b Biomarkers) Joined() string {
	if len(b.entries) == 0 {
		return NotAvailable
	}
	parts := make([]string, 0, len(b.entries))
	for _, e := range b.entries {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Gene, FormatCt(e.Ct)))
	}
	return strings.Join(parts, ", ")
}

// FormatCt renders a Ct value with the shortest representation that parses back
// to the same float64.
func FormatCt(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// MarshalJSON encodes the mapping as a JSON object preserving insertion order.
func (b Biomarkers) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range b.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Gene)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(FormatCt(e.Ct))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object in document order. Values may be numbers or
// numeric strings (older records stored Ct values as strings). null and the legacy
// "N/A" string decode to an empty mapping.
func (b *Biomarkers) UnmarshalJSON(data []byte) error {
	b.entries = nil
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		if s == "" || strings.EqualFold(s, NotAvailable) {
			return nil
		}
		return fmt.Errorf("biomarkers: unexpected string %q", s)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("biomarkers: expected object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("biomarkers: expected string key, got %v", keyTok)
		}
		valTok, err := dec.Token()
		if err != nil {
			return err
		}
		var raw string
		switch v := valTok.(type) {
		case json.Number:
			raw = v.String()
		case string:
			raw = strings.TrimSpace(v)
		default:
			return fmt.Errorf("biomarkers: value for %q is not numeric", key)
		}
		ct, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("biomarkers: value for %q: %w", key, err)
		}
		b.Set(key, ct)
	}
	_, err = dec.Token()
	return err
}
