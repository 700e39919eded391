// Package content derives the stored and displayed forms of channel posts:
// titles, hashtags, previews and search keywords. It has no
// dependency on storage or transport and is safe for concurrent use.
package content

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// PlaceholderTitle is used when a post has no usable first line.
const PlaceholderTitle = "Untitled post"

// Ellipsis marks truncated previews.
const Ellipsis = "..."

// Body picks the caption when present, else the text.
func Body(text, caption string) string {
	if strings.TrimSpace(caption) != "" {
		return caption
	}
	return text
}

// DeriveTitle returns the first line of body, whitespace-normalized and cut
// to maxRunes, or PlaceholderTitle when that line is empty.
func DeriveTitle(body string, maxRunes int) string {
	first, _, _ := strings.Cut(norm.NFC.String(body), "\n")
	first = strings.TrimSpace(normalizeWhitespace(first))
	if first == "" {
		return PlaceholderTitle
	}
	return Truncate(first, maxRunes)
}

// ExtractHashtags returns the tags of every whitespace-delimited token that
// starts with '#'. Only the leading markers are stripped; case and any other
// characters are kept, so "#Deals" and "#deals," are distinct tags. Empty names
// are dropped and exact duplicates are collapsed while keeping first-seen order.
func ExtractHashtags(body string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range strings.Fields(body) {
		if !strings.HasPrefix(tok, "#") {
			continue
		}
		name := strings.TrimLeft(tok, "#")
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// Preview cuts body to maxRunes and appends Ellipsis when anything was cut.
func Preview(body string, maxRunes int) string {
	body = strings.TrimSpace(body)
	cut := Truncate(body, maxRunes)
	if len(cut) < len(body) {
		return cut + Ellipsis
	}
	return cut
}

// NormalizeKeyword prepares user search input: NFC, lower-case, single spaces.
func NormalizeKeyword(s string) string {
	s = strings.TrimSpace(normalizeWhitespace(norm.NFC.String(s)))
	return cases.Lower(language.Und).String(s)
}

// NormalizeTag strips surrounding space and the leading markers from a tag
// typed or tapped by a user, matching the names ExtractHashtags stores.
func NormalizeTag(s string) string {
	return strings.TrimLeft(strings.TrimSpace(s), "#")
}

// Truncate returns at most maxRunes runes of s. Non-positive limits return s.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i]
		}
		n++
	}
	return s
}

func normalizeWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\r' {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
