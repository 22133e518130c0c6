package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/vitalplan/internal/apperr"
	"github.com/starford/vitalplan/internal/models"
)

// Extract runs Unwrap and Parse on raw generation output.
func Extract(raw string, schema *models.Schema) (*models.Plan, error) {
	doc, err := Unwrap(raw)
	if err != nil {
		return nil, err
	}
	return Parse(doc, schema)
}

// Parse decodes a candidate document and checks it against schema: exactly
// the seven weekdays, exactly the schema's categories on each day, and
// every item carrying its required fields with the right JSON types.
// Repeated object keys and a plan without a single item are also
// rejected. The first violation found (days in canonical order) is
// returned as a ShapeInvalid GenerationError.
func Parse(doc string, schema *models.Schema) (*models.Plan, error) {
	root, err := decode(doc)
	if err != nil {
		return nil, err
	}
	if err := checkDuplicateKeys(doc); err != nil {
		return nil, err
	}

	week, ok := root.(map[string]any)
	if !ok {
		return nil, shapeErr("", "", -1, "", "top-level value must be an object keyed by day, got %s", typeName(root))
	}
	if key := firstUnknown(week, models.DayIndex); key != "" {
		return nil, shapeErr(key, "", -1, "", "unexpected day")
	}

	plan := &models.Plan{Domain: schema.Domain, Days: make([]models.DayPlan, 0, len(models.Weekdays))}
	for _, day := range models.Weekdays {
		raw, ok := week[day]
		if !ok {
			return nil, shapeErr(day, "", -1, "", "day is missing")
		}
		dp, err := parseDay(day, raw, schema)
		if err != nil {
			return nil, err
		}
		plan.Days = append(plan.Days, dp)
	}
	if plan.Len() == 0 {
		return nil, shapeErr("", "", -1, "", "plan has no items")
	}
	return plan, nil
}

// checkDuplicateKeys walks an already decoded document token by token;
// decoding into a map would silently keep only the last of two equal keys.
func checkDuplicateKeys(doc string) error {
	dec := json.NewDecoder(strings.NewReader(doc))
	dec.UseNumber()
	path, key, err := findDuplicate(dec, nil)
	if err != nil {
		return syntaxErr(doc, dec.InputOffset(), err)
	}
	switch {
	case key == "":
		return nil
	case len(path) == 0:
		return shapeErr(key, "", -1, "", "day appears more than once")
	case len(path) == 1:
		return shapeErr(path[0], key, -1, "", "category appears more than once")
	}
	return shapeErr(path[0], path[1], -1, key, "field appears more than once")
}

// findDuplicate consumes one value from dec and returns the object path and
// key of the first repeated key inside it.
func findDuplicate(dec *json.Decoder, path []string) ([]string, string, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, "", err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil, "", nil
	}

	switch delim {
	case '{':
		seen := make(map[string]bool)
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, "", err
			}
			k, _ := kt.(string)
			if seen[k] {
				return path, k, nil
			}
			seen[k] = true
			p, dup, err := findDuplicate(dec, append(path[:len(path):len(path)], k))
			if err != nil || dup != "" {
				return p, dup, err
			}
		}
	case '[':
		for dec.More() {
			p, dup, err := findDuplicate(dec, path)
			if err != nil || dup != "" {
				return p, dup, err
			}
		}
	}
	// closing delimiter
	_, err = dec.Token()
	return nil, "", err
}

func decode(doc string) (any, error) {
	if strings.TrimSpace(doc) == "" {
		return nil, &apperr.GenerationError{Kind: apperr.KindSyntaxInvalid, Reason: "document is empty", Index: -1}
	}
	dec := json.NewDecoder(strings.NewReader(doc))
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, syntaxErr(doc, dec.InputOffset(), err)
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("trailing data after document")
		}
		return nil, syntaxErr(doc, dec.InputOffset(), err)
	}
	return root, nil
}

func syntaxErr(doc string, fallback int64, err error) error {
	offset := fallback
	var se *json.SyntaxError
	if errors.As(err, &se) {
		offset = se.Offset
	}
	return &apperr.GenerationError{
		Kind:    apperr.KindSyntaxInvalid,
		Reason:  fmt.Sprintf("offset %d", offset),
		Index:   -1,
		Excerpt: excerpt(doc, int(offset)),
		Err:     err,
	}
}

func parseDay(day string, raw any, schema *models.Schema) (models.DayPlan, error) {
	cats, ok := raw.(map[string]any)
	if !ok {
		return models.DayPlan{}, shapeErr(day, "", -1, "", "day must be an object keyed by category, got %s", typeName(raw))
	}
	if key := firstUnknown(cats, schema.CategoryIndex); key != "" {
		return models.DayPlan{}, shapeErr(day, key, -1, "", "unexpected category")
	}

	dp := models.DayPlan{Day: day, Categories: make([]models.CategoryPlan, 0, len(schema.Categories))}
	for _, c := range schema.Categories {
		raw, ok := cats[c.Name]
		if !ok {
			return models.DayPlan{}, shapeErr(day, c.Name, -1, "", "category is missing")
		}
		list, ok := raw.([]any)
		if !ok {
			return models.DayPlan{}, shapeErr(day, c.Name, -1, "", "category must be a list, got %s", typeName(raw))
		}
		items := make([]models.Item, 0, len(list))
		for i, el := range list {
			it, err := parseItem(day, c.Name, i, el, schema)
			if err != nil {
				return models.DayPlan{}, err
			}
			items = append(items, it)
		}
		dp.Categories = append(dp.Categories, models.CategoryPlan{Name: c.Name, Items: items})
	}
	return dp, nil
}

func parseItem(day, category string, idx int, raw any, schema *models.Schema) (models.Item, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return models.Item{}, shapeErr(day, category, idx, "", "item must be an object, got %s", typeName(raw))
	}

	nameKey, nameVal, ok := lookup(obj, schema.Name)
	if !ok || nameVal == nil {
		return models.Item{}, shapeErr(day, category, idx, schema.Name.Key, "required field is missing")
	}
	name, ok := nameVal.(string)
	if !ok {
		return models.Item{}, shapeErr(day, category, idx, nameKey, "must be a string, got %s", typeName(nameVal))
	}
	name = strings.TrimSpace(name)
	if err := validation.Validate(name, validation.Required); err != nil {
		return models.Item{}, shapeErr(day, category, idx, nameKey, "%s", err.Error())
	}

	it := models.Item{Name: name, Attrs: make(map[models.Attr]float64, len(schema.Fields))}
	for _, f := range schema.Fields {
		key, val, present := lookup(obj, f)
		if !present || val == nil {
			if f.Optional {
				continue
			}
			return models.Item{}, shapeErr(day, category, idx, f.Key, "required field is missing")
		}
		v, err := number(val, f.Kind)
		if err != nil {
			return models.Item{}, shapeErr(day, category, idx, key, "%s", err.Error())
		}
		if err := validation.Validate(v, validation.Min(0.0).Error("must not be negative")); err != nil {
			return models.Item{}, shapeErr(day, category, idx, key, "%s", err.Error())
		}
		it.Attrs[f.Attr] = v
	}
	return it, nil
}

// lookup finds f by its key or one of its aliases.
func lookup(obj map[string]any, f models.Field) (string, any, bool) {
	if v, ok := obj[f.Key]; ok {
		return f.Key, v, true
	}
	for _, a := range f.Aliases {
		if v, ok := obj[a]; ok {
			return a, v, true
		}
	}
	return f.Key, nil, false
}

// number accepts only JSON numbers; "200" is rejected even though it would
// parse.
func number(val any, kind models.FieldKind) (float64, error) {
	n, ok := val.(json.Number)
	if !ok {
		return 0, fmt.Errorf("must be a %s, got %s", kind, typeName(val))
	}
	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("number %s is out of range", n)
	}
	if kind == models.KindInteger {
		if f != math.Trunc(f) {
			return 0, fmt.Errorf("must be an integer, got %s", n)
		}
		// Integer attributes are stored in 32-bit columns.
		if f > math.MaxInt32 {
			return 0, fmt.Errorf("integer %s is out of range", n)
		}
	}
	return f, nil
}

// firstUnknown returns the alphabetically first key that index does not
// recognise, or "".
func firstUnknown(m map[string]any, index func(string) int) string {
	var unknown []string
	for k := range m {
		if index(k) < 0 {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return ""
	}
	sort.Strings(unknown)
	return unknown[0]
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "list"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

func shapeErr(day, category string, idx int, field, format string, args ...any) error {
	return &apperr.GenerationError{
		Kind:     apperr.KindShapeInvalid,
		Reason:   fmt.Sprintf(format, args...),
		Day:      day,
		Category: category,
		Index:    idx,
		Field:    field,
	}
}
