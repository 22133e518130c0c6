package models

import (
	"sort"
	"time"
)

// Flatten turns a plan into records in day, category, then item order.
// Position numbers the records from zero across the whole plan.
func Flatten(p *Plan, ownerID int64, createdAt time.Time) []Record {
	out := make([]Record, 0, p.Len())
	for _, d := range p.Days {
		for _, c := range d.Categories {
			for _, it := range c.Items {
				out = append(out, Record{
					OwnerID:   ownerID,
					Domain:    p.Domain,
					Day:       d.Day,
					Category:  c.Name,
					Position:  len(out),
					Item:      it,
					CreatedAt: createdAt,
				})
			}
		}
	}
	return out
}

// Assemble regroups records into the nested view. Items keep the relative
// order in which they appear in records. Every schema category is present
// on each day that has at least one record. ok is false when records is
// empty: no plan exists, which is different from an empty plan.
func Assemble(domain Domain, records []Record) (plan *Plan, ok bool) {
	if len(records) == 0 {
		return nil, false
	}
	schema, err := SchemaFor(domain)
	if err != nil {
		return nil, false
	}

	days := make(map[string]*DayPlan)
	var order []string
	for _, r := range records {
		d, seen := days[r.Day]
		if !seen {
			d = &DayPlan{Day: r.Day}
			for _, c := range schema.Categories {
				d.Categories = append(d.Categories, CategoryPlan{Name: c.Name, Items: []Item{}})
			}
			days[r.Day] = d
			order = append(order, r.Day)
		}
		idx := -1
		for i := range d.Categories {
			if d.Categories[i].Name == r.Category {
				idx = i
				break
			}
		}
		if idx < 0 {
			d.Categories = append(d.Categories, CategoryPlan{Name: r.Category})
			idx = len(d.Categories) - 1
		}
		d.Categories[idx].Items = append(d.Categories[idx].Items, r.Item)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return dayRank(order[i]) < dayRank(order[j])
	})
	plan = &Plan{Domain: domain, Days: make([]DayPlan, 0, len(order))}
	for _, day := range order {
		plan.Days = append(plan.Days, *days[day])
	}
	return plan, true
}

// dayRank sorts unknown days after Sunday.
func dayRank(day string) int {
	if i := DayIndex(day); i >= 0 {
		return i
	}
	return len(Weekdays)
}

// Newest returns the latest CreatedAt among records.
func Newest(records []Record) time.Time {
	var t time.Time
	for _, r := range records {
		if r.CreatedAt.After(t) {
			t = r.CreatedAt
		}
	}
	return t
}
