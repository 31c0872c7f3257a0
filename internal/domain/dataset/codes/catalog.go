// Package codes maps uploaded workbooks to the series codes they are known to
// carry and narrows their columns to those codes.
package codes

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// maxSuggestionDistance bounds the edit distance for a near-miss hint
const maxSuggestionDistance = 4

var numericCode = regexp.MustCompile(`^\d+$`)

// Manifest is the YAML form of the catalog
type Manifest struct {
	Version string        `yaml:"version"`
	Series  []SeriesEntry `yaml:"series"`
}

// SeriesEntry lists the codes of one workbook family
type SeriesEntry struct {
	File  string   `yaml:"file"`
	Codes []string `yaml:"codes"`
}

type entry struct {
	key   string
	codes []string

	// ahocorasick.Matcher keeps per-call state, so Match is serialized
	mu      sync.Mutex
	matcher *ahocorasick.Matcher
}

// hits returns, for each label, the indexes of the codes it contains
func (e *entry) hits(labels []string) [][]int {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([][]int, len(labels))
	for i, l := range labels {
		out[i] = e.matcher.Match([]byte(l))
	}
	return out
}

// Catalog is the immutable base filename to codes mapping
type Catalog struct {
	version string
	entries map[string]*entry
	keys    []string
}

// Default returns the catalog embedded in the binary
func Default() (*Catalog, error) {
	return Parse(embeddedCatalog)
}

// Load reads a catalog manifest from disk
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse builds a catalog from manifest YAML
func Parse(data []byte) (*Catalog, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(m)
}

// New validates a manifest and compiles one matcher per entry
func New(m Manifest) (*Catalog, error) {
	c := &Catalog{
		version: m.Version,
		entries: make(map[string]*entry, len(m.Series)),
		keys:    make([]string, 0, len(m.Series)),
	}

	for i, s := range m.Series {
		key := normalizeKey(s.File)
		if key == "" {
			return nil, fmt.Errorf("series %d: missing file", i)
		}
		if _, dup := c.entries[key]; dup {
			return nil, fmt.Errorf("series %d: duplicate file %q", i, s.File)
		}
		if len(s.Codes) == 0 {
			return nil, fmt.Errorf("series %q: no codes", s.File)
		}

		codes := make([]string, 0, len(s.Codes))
		seen := make(map[string]struct{}, len(s.Codes))
		for _, code := range s.Codes {
			code = strings.TrimSpace(code)
			if !numericCode.MatchString(code) {
				return nil, fmt.Errorf("series %q: code %q is not numeric", s.File, code)
			}
			if _, ok := seen[code]; ok {
				continue
			}
			seen[code] = struct{}{}
			codes = append(codes, code)
		}

		c.entries[key] = &entry{
			key:     key,
			codes:   codes,
			matcher: ahocorasick.NewStringMatcher(codes),
		}
		c.keys = append(c.keys, key)
	}

	sort.Strings(c.keys)
	return c, nil
}

// Version returns the manifest version string
func (c *Catalog) Version() string {
	return c.version
}

// Len returns the number of catalog entries
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Codes returns the codes registered for a base filename
func (c *Catalog) Codes(base string) ([]string, bool) {
	e, ok := c.entries[normalizeKey(base)]
	if !ok {
		return nil, false
	}
	return append([]string(nil), e.codes...), true
}

// Suggest returns the closest catalog key to a base filename that missed,
// or "" when nothing is close
func (c *Catalog) Suggest(base string) string {
	base = normalizeKey(base)
	if ext := filepath.Ext(base); ext != "" && len(ext) <= 5 {
		base = strings.TrimSuffix(base, ext)
	}

	best, bestDist := "", maxSuggestionDistance+1
	for _, k := range c.keys {
		if d := fuzzy.LevenshteinDistance(base, k); d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}

// normalizeKey composes Unicode (filenames from macOS arrive decomposed) and
// lower-cases
func normalizeKey(s string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
}
