package internal

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"manualrag/types"
)

// Resolver derives a stable manual identity from a filename. An entry
// in the override mapping wins verbatim. Derived ids are the routing
// key for citations, so colliding ids within a batch get numeric
// suffixes instead of silently overwriting each other.
type Resolver struct {
	overrides map[string]types.ManualMeta
	seen      map[string]int
}

var (
	// Leading product code: uppercase alnum token, optionally followed
	// by a numeric serial run, before the first separator sequence.
	productCodeRe = regexp.MustCompile(`^([A-Z][A-Z0-9]+)([-_]\d+)*[-_]+`)
	versionRe     = regexp.MustCompile(`(?i)[-_ .][vr]\d+(\.\d+)*`)
	serialRe      = regexp.MustCompile(`\d+-\d+(-\d+)*[-_]`)
	slugRe        = regexp.MustCompile(`[^a-z0-9]+`)
)

func NewResolver(overrides map[string]types.ManualMeta) *Resolver {
	if overrides == nil {
		overrides = make(map[string]types.ManualMeta)
	}
	return &Resolver{
		overrides: overrides,
		seen:      make(map[string]int),
	}
}

// LoadOverrides reads an optional filename -> metadata mapping. A
// missing file is not an error: every filename is then derived.
func LoadOverrides(path string) (map[string]types.ManualMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	overrides := make(map[string]types.ManualMeta)
	if err := json.Unmarshal(data, &overrides); err != nil {
		return nil, err
	}
	return overrides, nil
}

// Resolve maps one filename to manual metadata. Resolution order within
// a batch matters: the first file to claim an id keeps it, later
// collisions get -2, -3 and so on.
func (r *Resolver) Resolve(filename string) (types.ManualMeta, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return types.ManualMeta{}, types.MetadataError{Filename: filename, Reason: "empty filename"}
	}

	if meta, ok := r.overrides[filename]; ok {
		if meta.ID == "" {
			return types.ManualMeta{}, types.MetadataError{Filename: filename, Reason: "override entry has no id"}
		}
		r.seen[meta.ID]++
		return meta, nil
	}

	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	productID := ""
	if m := productCodeRe.FindStringSubmatch(base); m != nil {
		productID = m[1]
		base = base[len(m[0]):]
	}

	base = versionRe.ReplaceAllString(base, "")
	base = serialRe.ReplaceAllString(base, "")
	base = strings.ReplaceAll(base, "_", " ")
	base = strings.ReplaceAll(base, "-", " ")
	base = strings.Join(strings.Fields(base), " ")
	if base == "" {
		return types.ManualMeta{}, types.MetadataError{Filename: filename, Reason: "no usable name after cleaning"}
	}

	id := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(base), "-"), "-")
	if id == "" {
		return types.ManualMeta{}, types.MetadataError{Filename: filename, Reason: "name yields empty id"}
	}

	return types.ManualMeta{
		ID:        r.uniqueID(id),
		Label:     capitalizeWords(base),
		ProductID: productID,
	}, nil
}

func (r *Resolver) uniqueID(id string) string {
	n := r.seen[id]
	r.seen[id]++
	if n == 0 {
		return id
	}
	for {
		candidate := id + "-" + strconv.Itoa(n+1)
		if r.seen[candidate] == 0 {
			r.seen[candidate]++
			return candidate
		}
		n++
	}
}

func capitalizeWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
