// Package prompt builds the generation request for a weekly plan.
package prompt

import (
	"fmt"
	"strings"

	"github.com/starford/vitalplan/internal/models"
)

// Build returns the prompt asking for a 7-day plan of schema's domain.
// The output depends only on schema and preferences.
func Build(schema *models.Schema, preferences string) string {
	prefs := strings.TrimSpace(preferences)
	if prefs == "" {
		prefs = schema.DefaultPreference
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Generate a 7-day %s for one week (Monday to Sunday).\n", schema.Title)
	fmt.Fprintf(&b, "User preferences: %s\n\n", prefs)

	b.WriteString("For each day, provide:\n")
	for _, c := range schema.Categories {
		fmt.Fprintf(&b, "- %s: %d %s\n", c.Name, c.Count, plural(c.Count, "item", "items"))
	}

	b.WriteString("\nFor each item, include:\n")
	fmt.Fprintf(&b, "- %s: %s, required\n", schema.Name.Key, schema.Name.Kind)
	for _, f := range schema.Fields {
		fmt.Fprintf(&b, "- %s: %s", f.Key, f.Kind)
		if f.Unit != "" {
			fmt.Fprintf(&b, " (%s)", f.Unit)
		}
		if f.Optional {
			b.WriteString(", or null when it does not apply")
		} else {
			b.WriteString(", required")
		}
		b.WriteByte('\n')
	}

	b.WriteString("\nNumbers must be JSON numbers, never strings. ")
	fmt.Fprintf(&b, "Use exactly these day keys: %s. ", strings.Join(models.Weekdays, ", "))
	fmt.Fprintf(&b, "Use exactly these category keys on every day: %s.\n\n", strings.Join(schema.CategoryNames(), ", "))

	b.WriteString("Return ONLY valid JSON in this exact format:\n")
	b.WriteString(Contract(schema))
	b.WriteString("\n\nDo not include any explanation, commentary, or Markdown formatting before or after the JSON.")
	return b.String()
}

// Contract renders the expected document shape with one example day.
func Contract(schema *models.Schema) string {
	var b strings.Builder
	b.WriteString("{\n")
	fmt.Fprintf(&b, "  %q: {\n", models.Weekdays[0])
	for i, c := range schema.Categories {
		fmt.Fprintf(&b, "    %q: [", c.Name)
		examples := schema.Examples[c.Name]
		for j, it := range examples {
			if j > 0 {
				b.WriteString(", ")
			}
			b.Write(schema.MarshalItem(it))
		}
		if len(examples) > 0 {
			b.WriteString(", ...]")
		} else {
			b.WriteString("...]")
		}
		if i < len(schema.Categories)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString("  },\n")
	fmt.Fprintf(&b, "  ... (the same structure for %s)\n", strings.Join(models.Weekdays[1:], ", "))
	b.WriteString("}")
	return b.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
