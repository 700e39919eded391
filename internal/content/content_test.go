package content

import (
	"reflect"
	"strings"
	"testing"
)

func TestDeriveTitle(t *testing.T) {
	cases := []struct {
		name, body string
		max        int
		want       string
	}{
		{"first line", "Sale #deals #electronics\nsecond line", 150, "Sale #deals #electronics"},
		{"collapses spaces", "  Big \t\t sale  \nrest", 150, "Big sale"},
		{"truncates by runes", "Привет мир", 6, "Привет"},
		{"empty body", "", 150, PlaceholderTitle},
		{"blank first line", "   \nbody", 150, PlaceholderTitle},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveTitle(tc.body, tc.max); got != tc.want {
				t.Fatalf("DeriveTitle(%q) = %q; want %q", tc.body, got, tc.want)
			}
		})
	}
}

func TestExtractHashtags(t *testing.T) {
	cases := []struct {
		body string
		want []string
	}{
		{"Sale #deals #electronics", []string{"deals", "electronics"}},
		{"Sale #Deals #deals, #x.", []string{"Deals", "deals,", "x."}},
		{"#deals #deals ##deals", []string{"deals"}},
		{"# lonely ## marker", nil},
		{"no tags here", nil},
		{"line one\n#new_year #Скидки", []string{"new_year", "Скидки"}},
		{"mid#word is not a tag", nil},
	}
	for _, tc := range cases {
		if got := ExtractHashtags(tc.body); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("ExtractHashtags(%q) = %#v; want %#v", tc.body, got, tc.want)
		}
	}
}

func TestPreview(t *testing.T) {
	long := strings.Repeat("я", 250)
	got := Preview(long, 200)
	if !strings.HasSuffix(got, Ellipsis) || len([]rune(got)) != 200+len(Ellipsis) {
		t.Fatalf("Preview length = %d runes", len([]rune(got)))
	}
	if Preview("  short  ", 200) != "short" {
		t.Fatalf("short content should not be cut")
	}
}

func TestBodyAndKeywordHelpers(t *testing.T) {
	if Body("text", "caption") != "caption" || Body("text", "  ") != "text" {
		t.Fatalf("Body should prefer a non-blank caption")
	}
	if NormalizeKeyword("  Big   SALE ") != "big sale" {
		t.Fatalf("NormalizeKeyword = %q", NormalizeKeyword("  Big   SALE "))
	}
	if NormalizeTag(" #Deals") != "Deals" {
		t.Fatalf("NormalizeTag = %q", NormalizeTag(" #Deals"))
	}
	if Truncate("abc", 0) != "abc" || Truncate("abc", 2) != "ab" {
		t.Fatalf("Truncate mismatch")
	}
}
