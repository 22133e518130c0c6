// Package models defines the plan domain types shared across vitalplan.
package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Item is one meal or exercise. Attrs holds the numeric attributes that are
// present; an optional attribute that is absent or null has no entry.
type Item struct {
	Name  string
	Attrs map[Attr]float64
}

// Value returns the attribute value and whether it is set.
func (it Item) Value(a Attr) (float64, bool) {
	v, ok := it.Attrs[a]
	return v, ok
}

// Record is the flat, persisted form of one item.
type Record struct {
	ID        int64
	OwnerID   int64
	Domain    Domain
	Day       string
	Category  string
	Position  int
	Item      Item
	CreatedAt time.Time
}

// Plan is the nested day → category → items view of a domain plan.
// Days and categories are kept in canonical order.
type Plan struct {
	Domain Domain
	Days   []DayPlan
}

// DayPlan groups the categories of one weekday.
type DayPlan struct {
	Day        string
	Categories []CategoryPlan
}

// CategoryPlan is the ordered item list of one category.
type CategoryPlan struct {
	Name  string
	Items []Item
}

// Items returns the items under day/category, or nil.
func (p *Plan) Items(day, category string) []Item {
	for _, d := range p.Days {
		if d.Day != day {
			continue
		}
		for _, c := range d.Categories {
			if c.Name == category {
				return c.Items
			}
		}
	}
	return nil
}

// Len is the total number of items in the plan.
func (p *Plan) Len() int {
	n := 0
	for _, d := range p.Days {
		for _, c := range d.Categories {
			n += len(c.Items)
		}
	}
	return n
}

// MarshalJSON renders the plan in the same shape the generation service is
// asked to produce, with days and categories in canonical order.
func (p *Plan) MarshalJSON() ([]byte, error) {
	schema, err := SchemaFor(p.Domain)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, d := range p.Days {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKey(&buf, d.Day)
		buf.WriteByte('{')
		for j, c := range d.Categories {
			if j > 0 {
				buf.WriteByte(',')
			}
			writeKey(&buf, c.Name)
			buf.WriteByte('[')
			for k, it := range c.Items {
				if k > 0 {
					buf.WriteByte(',')
				}
				writeItem(&buf, schema, it)
			}
			buf.WriteByte(']')
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, k string) {
	kb, _ := json.Marshal(k)
	buf.Write(kb)
	buf.WriteByte(':')
}

func writeItem(buf *bytes.Buffer, schema *Schema, it Item) {
	buf.WriteByte('{')
	writeKey(buf, schema.Name.Key)
	nb, _ := json.Marshal(it.Name)
	buf.Write(nb)
	for _, f := range schema.Fields {
		buf.WriteByte(',')
		writeKey(buf, f.Key)
		v, ok := it.Attrs[f.Attr]
		switch {
		case !ok:
			buf.WriteString("null")
		case f.Kind == KindInteger:
			buf.WriteString(strconv.FormatInt(int64(math.Round(v)), 10))
		default:
			buf.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	buf.WriteByte('}')
}

// MarshalItem renders one item with the schema's JSON keys.
func (s *Schema) MarshalItem(it Item) []byte {
	var buf bytes.Buffer
	writeItem(&buf, s, it)
	return buf.Bytes()
}
