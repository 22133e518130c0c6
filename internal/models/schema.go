package models

import (
	"fmt"
	"strings"
)

// Domain is a kind of weekly plan.
type Domain string

const (
	Nutrition Domain = "nutrition"
	Exercise  Domain = "exercise"
)

// Domains lists every supported domain in a stable order.
var Domains = []Domain{Nutrition, Exercise}

var domainAliases = map[string]Domain{
	"nutrition": Nutrition,
	"diet":      Nutrition,
	"exercise":  Exercise,
	"workout":   Exercise,
}

// ParseDomain resolves a domain name or alias, case-insensitively.
func ParseDomain(s string) (Domain, error) {
	d, ok := domainAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown domain %q", s)
	}
	return d, nil
}

// Weekdays are the seven canonical day keys, Monday first.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// DayIndex returns the position of day in Weekdays, or -1.
func DayIndex(day string) int {
	for i, d := range Weekdays {
		if d == day {
			return i
		}
	}
	return -1
}

// Attr names a numeric item attribute. Attr values double as column names.
type Attr string

const (
	AttrCalories Attr = "calories"
	AttrProtein  Attr = "protein"
	AttrCarbs    Attr = "carbs"
	AttrFat      Attr = "fat"
	AttrDuration Attr = "duration"
	AttrSets     Attr = "sets"
	AttrReps     Attr = "reps"
)

// Attrs lists every attribute any domain may carry.
var Attrs = []Attr{AttrCalories, AttrProtein, AttrCarbs, AttrFat, AttrDuration, AttrSets, AttrReps}

// FieldKind is the JSON type a field must have.
type FieldKind int

const (
	KindText FieldKind = iota
	KindNumber
	KindInteger
)

func (k FieldKind) String() string {
	switch k {
	case KindText:
		return "string"
	case KindNumber:
		return "number"
	case KindInteger:
		return "integer"
	}
	return "unknown"
}

// Field describes one key of a plan item as it appears in generated JSON.
type Field struct {
	Key      string
	Aliases  []string
	Attr     Attr // empty for the name field
	Kind     FieldKind
	Optional bool // may be absent or null
	Unit     string
}

// Category is one bucket of a day, with the item count requested from the
// generation service.
type Category struct {
	Name  string
	Count int
}

// Schema is the structural description of one domain. The validator, the
// prompt builder, and the JSON view are all driven by it.
type Schema struct {
	Domain            Domain
	Title             string
	Categories        []Category
	Name              Field
	Fields            []Field
	DefaultPreference string
	Examples          map[string][]Item
}

// CategoryIndex returns the position of name in s.Categories, or -1.
func (s *Schema) CategoryIndex(name string) int {
	for i, c := range s.Categories {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// CategoryNames returns the category names in schema order.
func (s *Schema) CategoryNames() []string {
	out := make([]string, len(s.Categories))
	for i, c := range s.Categories {
		out[i] = c.Name
	}
	return out
}

// Field returns the field bound to attr.
func (s *Schema) Field(attr Attr) (Field, bool) {
	for _, f := range s.Fields {
		if f.Attr == attr {
			return f, true
		}
	}
	return Field{}, false
}

// ItemsPerDay is the number of items the prompt asks for per day.
func (s *Schema) ItemsPerDay() int {
	n := 0
	for _, c := range s.Categories {
		n += c.Count
	}
	return n
}

func exampleItem(name string, kv ...any) Item {
	it := Item{Name: name, Attrs: make(map[Attr]float64, len(kv)/2)}
	for i := 0; i+1 < len(kv); i += 2 {
		it.Attrs[kv[i].(Attr)] = kv[i+1].(float64)
	}
	return it
}

var nutritionSchema = &Schema{
	Domain: Nutrition,
	Title:  "diet plan",
	Categories: []Category{
		{Name: "breakfast", Count: 2},
		{Name: "lunch", Count: 2},
		{Name: "dinner", Count: 2},
		{Name: "snacks", Count: 2},
	},
	Name: Field{Key: "name", Kind: KindText},
	Fields: []Field{
		{Key: "calories", Attr: AttrCalories, Kind: KindNumber, Unit: "kcal"},
		{Key: "protein", Attr: AttrProtein, Kind: KindNumber, Unit: "g"},
		{Key: "carbs", Attr: AttrCarbs, Kind: KindNumber, Unit: "g"},
		{Key: "fat", Attr: AttrFat, Kind: KindNumber, Unit: "g"},
	},
	DefaultPreference: "None",
	Examples: map[string][]Item{
		"breakfast": {exampleItem("Oatmeal with berries", AttrCalories, 320.0, AttrProtein, 12.0, AttrCarbs, 54.0, AttrFat, 6.0)},
	},
}

var exerciseSchema = &Schema{
	Domain: Exercise,
	Title:  "exercise plan",
	Categories: []Category{
		{Name: "Cardio", Count: 2},
		{Name: "Strength", Count: 2},
		{Name: "Flexibility", Count: 1},
	},
	Name: Field{Key: "exercise_name", Aliases: []string{"name"}, Kind: KindText},
	Fields: []Field{
		{Key: "duration", Attr: AttrDuration, Kind: KindInteger, Unit: "minutes"},
		{Key: "calories", Attr: AttrCalories, Kind: KindNumber, Unit: "kcal burned"},
		{Key: "sets", Attr: AttrSets, Kind: KindInteger, Optional: true},
		{Key: "reps", Attr: AttrReps, Kind: KindInteger, Optional: true},
	},
	DefaultPreference: "Balanced workout for general fitness",
	Examples: map[string][]Item{
		"Cardio":      {exampleItem("Running", AttrDuration, 20.0, AttrCalories, 200.0)},
		"Strength":    {exampleItem("Push-ups", AttrDuration, 10.0, AttrCalories, 50.0, AttrSets, 3.0, AttrReps, 15.0)},
		"Flexibility": {exampleItem("Yoga Stretches", AttrDuration, 15.0, AttrCalories, 30.0)},
	},
}

// SchemaFor returns the schema of d.
func SchemaFor(d Domain) (*Schema, error) {
	switch d {
	case Nutrition:
		return nutritionSchema, nil
	case Exercise:
		return exerciseSchema, nil
	}
	return nil, fmt.Errorf("no schema for domain %q", d)
}

// MustSchema is SchemaFor for domains known at compile time.
func MustSchema(d Domain) *Schema {
	s, err := SchemaFor(d)
	if err != nil {
		panic(err)
	}
	return s
}
