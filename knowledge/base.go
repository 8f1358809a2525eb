// Package knowledge holds the static category-to-template table the
// concierge answers from. The table is fixed at construction time; lookups
// for anything outside it resolve to the default entry.
package knowledge

import (
	"fmt"
	"strings"

	"github.com/go-openapi/swag"
	json "github.com/goccy/go-json"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Category labels a kind of user query.
type Category string

func (c Category) String() string { return string(c) }

const (
	Greeting Category = "greeting"
	Weather  Category = "weather"
	Help     Category = "help"

	// Default is the designated fallback; every base contains it.
	Default Category = "default"
)

// Entry pairs the canned response template for a category with the
// description shown to the classifier.
type Entry struct {
	Description string `json:"description,omitempty"`
	Template    string `json:"template"`
}

// Base is an immutable ordered mapping of categories to entries.
type Base struct {
	entries *orderedmap.OrderedMap[Category, Entry]
}

// Builtin returns the authoring-time knowledge base of the concierge demo.
func Builtin() *Base {
	b, err := New(map[Category]Entry{}, nil)
	_ = err // cannot fail on an empty set
	for _, e := range []struct {
		cat   Category
		entry Entry
	}{
		{Greeting, Entry{
			Description: "the user is saying hello or opening the conversation",
			Template:    "Hello! I'm an advanced OpenAI agent. How can I help you today?",
		}},
		{Weather, Entry{
			Description: "the user is asking about weather conditions or forecasts",
			Template:    "I don't have real-time weather data, but I can help you find weather information.",
		}},
		{Help, Entry{
			Description: "the user wants to know what this assistant can do",
			Template:    "I can help with greetings, weather queries, and general information. Just ask!",
		}},
		{Default, Entry{
			Description: "anything that fits none of the other categories",
			Template:    "I'm not sure how to respond to that. Try asking about weather, or say hello!",
		}},
	} {
		b.entries.Set(e.cat, e.entry)
	}
	return b
}

// New builds a base from entries, iterated in the given order. The set must
// include the default category and every entry needs a template.
func New(entries map[Category]Entry, order []Category) (*Base, error) {
	b := &Base{entries: orderedmap.New[Category, Entry]()}
	for _, cat := range order {
		entry, ok := entries[cat]
		if !ok {
			return nil, fmt.Errorf("category %q listed in order but not defined", cat)
		}
		if strings.TrimSpace(entry.Template) == "" {
			return nil, fmt.Errorf("category %q has no template", cat)
		}
		if _, dup := b.entries.Get(cat); dup {
			return nil, fmt.Errorf("category %q defined twice", cat)
		}
		b.entries.Set(cat, entry)
	}
	if len(order) > 0 {
		if _, ok := b.entries.Get(Default); !ok {
			return nil, fmt.Errorf("knowledge base has no %q category", Default)
		}
	}
	return b, nil
}

// FromJSON loads a base from a JSON object keyed by category name. Key order
// in the document becomes iteration order.
func FromJSON(data []byte) (*Base, error) {
	om := orderedmap.New[string, Entry]()
	if err := json.Unmarshal(data, &om); err != nil {
		return nil, fmt.Errorf("invalid knowledge base: %w", err)
	}

	entries := make(map[Category]Entry, om.Len())
	order := make([]Category, 0, om.Len())
	for pair := om.Oldest(); pair != nil; pair = pair.Next() {
		cat := Category(strings.ToLower(strings.TrimSpace(pair.Key)))
		if _, dup := entries[cat]; dup {
			return nil, fmt.Errorf("category %q defined twice", cat)
		}
		entries[cat] = pair.Value
		order = append(order, cat)
	}
	return New(entries, order)
}

// Len returns the number of categories in the base.
func (b *Base) Len() int {
	return b.entries.Len()
}

// Categories returns the category labels in authoring order.
func (b *Base) Categories() []Category {
	cats := make([]Category, 0, b.entries.Len())
	for pair := b.entries.Oldest(); pair != nil; pair = pair.Next() {
		cats = append(cats, pair.Key)
	}
	return cats
}

// Entry returns the entry for a category, without fallback.
func (b *Base) Entry(cat Category) (Entry, bool) {
	return b.entries.Get(cat)
}

// Template returns the response template for a category. Unknown categories
// resolve to the default template.
func (b *Base) Template(cat Category) string {
	if entry, ok := b.entries.Get(cat); ok {
		return entry.Template
	}
	entry, _ := b.entries.Get(Default)
	return entry.Template
}

// Contains reports whether name labels a known category, ignoring case.
func (b *Base) Contains(name string) bool {
	names := make([]string, 0, b.entries.Len())
	for pair := b.entries.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, string(pair.Key))
	}
	return swag.ContainsStringsCI(names, name)
}

// Normalize maps free-form classifier output onto a category. Anything that
// is not a known category after trimming and lowercasing becomes Default.
func (b *Base) Normalize(raw string) Category {
	cat := Category(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := b.entries.Get(cat); ok {
		return cat
	}
	return Default
}

// Describe renders the category list the classifier prompt embeds, one
// "- name: description" line per category.
func (b *Base) Describe() string {
	var sb strings.Builder
	for pair := b.entries.Oldest(); pair != nil; pair = pair.Next() {
		desc := pair.Value.Description
		if desc == "" {
			desc = pair.Value.Template
		}
		fmt.Fprintf(&sb, "- %s: %s\n", pair.Key, desc)
	}
	return strings.TrimRight(sb.String(), "\n")
}
