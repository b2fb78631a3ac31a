// Package curies provides compact URI (CURIE) references and prefix
// conversion between CURIEs and full URIs.
package curies

import (
	"fmt"
	"sort"
	"strings"
)

// Reference identifies an ontology term as a (prefix, identifier) pair.
// Name carries an optional human-readable label. Equality is structural
// on prefix and identifier only; Name is display metadata.
type Reference struct {
	Prefix     string `json:"prefix"`
	Identifier string `json:"identifier"`
	Name       string `json:"name,omitempty"`
}

// CURIE renders the reference in "prefix:identifier" form.
func (r Reference) CURIE() string {
	return r.Prefix + ":" + r.Identifier
}

// Key returns the structural identity of the reference, ignoring the label.
func (r Reference) Key() string {
	return r.CURIE()
}

// IsZero reports whether the reference is empty.
func (r Reference) IsZero() bool {
	return r.Prefix == "" && r.Identifier == ""
}

// Equal compares two references structurally on (prefix, identifier).
func (r Reference) Equal(other Reference) bool {
	return r.Prefix == other.Prefix && r.Identifier == other.Identifier
}

// ParseCURIE splits a "prefix:identifier" string into a Reference.
// The identifier may itself contain colons (e.g. hashes).
func ParseCURIE(curie string) (Reference, error) {
	prefix, identifier, ok := strings.Cut(curie, ":")
	if !ok || prefix == "" || identifier == "" {
		return Reference{}, fmt.Errorf("invalid curie %q", curie)
	}
	return Reference{Prefix: prefix, Identifier: identifier}, nil
}

// MustParseCURIE is ParseCURIE for statically known inputs.
func MustParseCURIE(curie string) Reference {
	r, err := ParseCURIE(curie)
	if err != nil {
		panic(err)
	}
	return r
}

// NamedReference builds a Reference from a CURIE string and a label.
func NamedReference(curie, name string) (Reference, error) {
	r, err := ParseCURIE(curie)
	if err != nil {
		return Reference{}, err
	}
	r.Name = name
	return r, nil
}

// Converter expands and contracts CURIEs against a prefix map. It is
// constructed once by the caller and passed down explicitly; there is no
// package-level default.
type Converter struct {
	prefixMap map[string]string // prefix -> uri prefix
	reverse   []reverseEntry    // longest uri prefix first
}

type reverseEntry struct {
	uriPrefix string
	prefix    string
}

// NewConverter builds a converter from a prefix -> URI-prefix map.
func NewConverter(prefixMap map[string]string) *Converter {
	c := &Converter{prefixMap: make(map[string]string, len(prefixMap))}
	for prefix, uriPrefix := range prefixMap {
		c.prefixMap[prefix] = uriPrefix
		c.reverse = append(c.reverse, reverseEntry{uriPrefix: uriPrefix, prefix: prefix})
	}
	// Longest URI prefixes win on compression so nested namespaces
	// resolve to the most specific prefix.
	sort.Slice(c.reverse, func(i, j int) bool {
		if len(c.reverse[i].uriPrefix) != len(c.reverse[j].uriPrefix) {
			return len(c.reverse[i].uriPrefix) > len(c.reverse[j].uriPrefix)
		}
		return c.reverse[i].uriPrefix < c.reverse[j].uriPrefix
	})
	return c
}

// Prefixes returns the sorted prefixes known to the converter.
func (c *Converter) Prefixes() []string {
	out := make([]string, 0, len(c.prefixMap))
	for prefix := range c.prefixMap {
		out = append(out, prefix)
	}
	sort.Strings(out)
	return out
}

// Bimap returns a copy of the prefix -> URI-prefix map.
func (c *Converter) Bimap() map[string]string {
	out := make(map[string]string, len(c.prefixMap))
	for k, v := range c.prefixMap {
		out[k] = v
	}
	return out
}

// Has reports whether the converter knows the given prefix.
func (c *Converter) Has(prefix string) bool {
	_, ok := c.prefixMap[prefix]
	return ok
}

// Expand renders a reference as a full URI.
func (c *Converter) Expand(r Reference) (string, error) {
	uriPrefix, ok := c.prefixMap[r.Prefix]
	if !ok {
		return "", fmt.Errorf("unknown prefix %q", r.Prefix)
	}
	return uriPrefix + r.Identifier, nil
}

// Compress parses a full URI back into a Reference.
func (c *Converter) Compress(uri string) (Reference, error) {
	for _, entry := range c.reverse {
		if strings.HasPrefix(uri, entry.uriPrefix) {
			return Reference{
				Prefix:     entry.prefix,
				Identifier: strings.TrimPrefix(uri, entry.uriPrefix),
			}, nil
		}
	}
	return Reference{}, fmt.Errorf("no prefix matches uri %q", uri)
}

// Subconverter returns a converter restricted to the given prefixes.
// Prefixes unknown to the parent are ignored.
func (c *Converter) Subconverter(prefixes []string) *Converter {
	sub := make(map[string]string, len(prefixes))
	for _, prefix := range prefixes {
		if uriPrefix, ok := c.prefixMap[prefix]; ok {
			sub[prefix] = uriPrefix
		}
	}
	return NewConverter(sub)
}

// Merge overlays other onto c, returning a new converter. Prefixes from c
// win on conflict.
func (c *Converter) Merge(other *Converter) *Converter {
	merged := other.Bimap()
	for k, v := range c.prefixMap {
		merged[k] = v
	}
	return NewConverter(merged)
}
