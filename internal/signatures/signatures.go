// Package signatures holds the immutable database of known modification tools.
package signatures

import (
	"fmt"
	"sort"
	"strings"
)

// Platform is a target ecosystem with its own signature set.
type Platform string

const (
	Java    Platform = "java"
	Bedrock Platform = "bedrock"
)

// Platforms lists every supported platform in scan order.
func Platforms() []Platform {
	return []Platform{Java, Bedrock}
}

// ParsePlatform maps user input to a Platform.
func ParsePlatform(s string) (Platform, error) {
	switch Platform(strings.ToLower(strings.TrimSpace(s))) {
	case Java:
		return Java, nil
	case Bedrock:
		return Bedrock, nil
	}
	return "", fmt.Errorf("unknown platform %q (want java or bedrock)", s)
}

// Signature is a named set of case-insensitive substrings.
type Signature struct {
	Label    string   `json:"label" yaml:"label"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// Matches reports whether text contains any of the signature's keywords.
func (s Signature) Matches(text string) bool {
	return Matches(text, s.Keywords)
}

// Matches is the shared rule: lowercase(text) contains lowercase(k) for some k.
// Empty keywords never match.
func Matches(text string, keywords []string) bool {
	if text == "" {
		return false
	}
	lt := strings.ToLower(text)
	for _, k := range keywords {
		if k == "" {
			continue
		}
		if strings.Contains(lt, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// Database is built once and never mutated. Accessors return copies.
type Database struct {
	byPlatform map[Platform][]Signature
	combined   []Signature
}

// New builds a database from label -> keywords tables per platform.
// Keywords are lowercased and de-duplicated; labels are sorted.
func New(tables map[Platform]map[string][]string) *Database {
	db := &Database{byPlatform: make(map[Platform][]Signature, len(tables))}

	merged := make(map[string]map[string]struct{})
	for platform, table := range tables {
		sigs := make([]Signature, 0, len(table))
		for label, kws := range table {
			norm := normalize(kws)
			sigs = append(sigs, Signature{Label: label, Keywords: norm})

			set, ok := merged[label]
			if !ok {
				set = make(map[string]struct{})
				merged[label] = set
			}
			for _, k := range norm {
				set[k] = struct{}{}
			}
		}
		sortSignatures(sigs)
		db.byPlatform[platform] = sigs
	}

	db.combined = make([]Signature, 0, len(merged))
	for label, set := range merged {
		kws := make([]string, 0, len(set))
		for k := range set {
			kws = append(kws, k)
		}
		sort.Strings(kws)
		db.combined = append(db.combined, Signature{Label: label, Keywords: kws})
	}
	sortSignatures(db.combined)

	return db
}

// Lookup returns the signatures of one platform. Unknown platforms yield nil.
func (d *Database) Lookup(p Platform) []Signature {
	return cloneSignatures(d.byPlatform[p])
}

// Combined returns the union of all platforms, keyed by label.
func (d *Database) Combined() []Signature {
	return cloneSignatures(d.combined)
}

// Has reports whether the database carries signatures for p.
func (d *Database) Has(p Platform) bool {
	_, ok := d.byPlatform[p]
	return ok
}

// Size is the number of distinct labels across platforms.
func (d *Database) Size() int {
	return len(d.combined)
}

func normalize(kws []string) []string {
	seen := make(map[string]struct{}, len(kws))
	out := make([]string, 0, len(kws))
	for _, k := range kws {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func sortSignatures(sigs []Signature) {
	sort.Slice(sigs, func(i, j int) bool { return sigs[i].Label < sigs[j].Label })
}

func cloneSignatures(in []Signature) []Signature {
	if in == nil {
		return nil
	}
	out := make([]Signature, len(in))
	for i, s := range in {
		out[i] = Signature{Label: s.Label, Keywords: append([]string(nil), s.Keywords...)}
	}
	return out
}
