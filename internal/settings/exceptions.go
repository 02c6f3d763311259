// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package settings

import (
	"bufio"
	"fmt"
	"strings"
)

// DefaultExceptionList keeps the casing of common acronyms and formulas
// when keywords are lowercased.
const DefaultExceptionList = `# term -> replacement; a bare term keeps its own spelling
DNA
RNA
CO2 -> CO₂
X-ray
pH
NMR
XPS
SEM
TEM
COVID-19
`

// Exceptions maps lowercased terms to their preferred spelling.
type Exceptions map[string]string

// ParseExceptions reads one exception per line. "term -> replacement" maps
// term to replacement; a bare term maps to itself. Blank lines and lines
// starting with "#" are ignored.
func ParseExceptions(text string) (Exceptions, error) {
	ex := Exceptions{}
	sc := bufio.NewScanner(strings.NewReader(text))
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		term, repl := line, line
		if i := strings.Index(line, "->"); i >= 0 {
			term = strings.TrimSpace(line[:i])
			repl = strings.TrimSpace(line[i+2:])
			if term == "" || repl == "" {
				return nil, fmt.Errorf("exception list line %d: expected \"term -> replacement\", got %q", n, line)
			}
		}
		ex[strings.ToLower(term)] = repl
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading exception list: %w", err)
	}
	return ex, nil
}

// Normalize lowercases keyword and restores exception spellings. A whole
// keyword match wins over per-word matches.
func (e Exceptions) Normalize(keyword string) string {
	keyword = strings.Join(strings.Fields(keyword), " ")
	lower := strings.ToLower(keyword)
	if repl, ok := e[lower]; ok {
		return repl
	}
	words := strings.Split(lower, " ")
	for i, w := range words {
		core := strings.Trim(w, ",;:()")
		if repl, ok := e[core]; ok {
			words[i] = strings.Replace(w, core, repl, 1)
		}
	}
	return strings.Join(words, " ")
}

// NormalizeAll applies Normalize to each keyword, dropping empty results
// and duplicates while keeping order.
func (e Exceptions) NormalizeAll(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := map[string]bool{}
	for _, k := range keywords {
		n := e.Normalize(k)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
