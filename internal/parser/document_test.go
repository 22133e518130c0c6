package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/starford/vitalplan/internal/apperr"
	"github.com/starford/vitalplan/internal/models"
	"github.com/starford/vitalplan/internal/testutil"
)

// mutate decodes doc, applies fn, and re-encodes it.
func mutate(t *testing.T, doc string, fn func(week map[string]any)) string {
	t.Helper()
	var week map[string]any
	if err := json.Unmarshal([]byte(doc), &week); err != nil {
		t.Fatal(err)
	}
	fn(week)
	out, err := json.Marshal(week)
	if err != nil {
		t.Fatal(err)
	}
	return string(out)
}

func slot(week map[string]any, day, category string) []any {
	return week[day].(map[string]any)[category].([]any)
}

func asGenerationError(t *testing.T, err error) *apperr.GenerationError {
	t.Helper()
	var ge *apperr.GenerationError
	if !errors.As(err, &ge) {
		t.Fatalf("err = %v, want *apperr.GenerationError", err)
	}
	return ge
}

func TestParse_Nutrition(t *testing.T) {
	schema := models.MustSchema(models.Nutrition)
	plan, err := Parse(testutil.Document(schema, 2), schema)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(plan.Days) != 7 {
		t.Fatalf("days = %d, want 7", len(plan.Days))
	}
	if plan.Days[0].Day != "Monday" || plan.Days[6].Day != "Sunday" {
		t.Errorf("days out of order: %s..%s", plan.Days[0].Day, plan.Days[6].Day)
	}
	if plan.Len() != 56 {
		t.Errorf("items = %d, want 56", plan.Len())
	}
	items := plan.Items("Monday", "breakfast")
	if len(items) != 2 || items[0].Name != "Monday breakfast 1" || items[1].Name != "Monday breakfast 2" {
		t.Errorf("Monday.breakfast = %+v", items)
	}
	if v, _ := items[0].Value(models.AttrCalories); v != 101.5 {
		t.Errorf("calories = %v, want 101.5", v)
	}
}

func TestParse_ExerciseOptionalFields(t *testing.T) {
	schema := models.MustSchema(models.Exercise)
	plan, err := Parse(testutil.Document(schema, 2), schema)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if plan.Len() != 7*3*2 {
		t.Errorf("items = %d", plan.Len())
	}
	strength := plan.Items("Friday", "Strength")
	if _, ok := strength[0].Value(models.AttrSets); !ok {
		t.Error("first item should carry sets")
	}
	if _, ok := strength[1].Value(models.AttrSets); ok {
		t.Error("null sets should be absent")
	}
	if d, _ := strength[1].Value(models.AttrDuration); d != 12 {
		t.Errorf("duration = %v, want 12", d)
	}
}

func TestParse_ExerciseNameAlias(t *testing.T) {
	schema := models.MustSchema(models.Exercise)
	doc := mutate(t, testutil.Document(schema, 1), func(week map[string]any) {
		it := slot(week, "Monday", "Cardio")[0].(map[string]any)
		delete(it, "exercise_name")
		it["name"] = "Rowing"
	})
	plan, err := Parse(doc, schema)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := plan.Items("Monday", "Cardio")[0].Name; got != "Rowing" {
		t.Errorf("name = %q", got)
	}
}

func TestParse_SyntaxInvalid(t *testing.T) {
	schema := models.MustSchema(models.Nutrition)
	for _, doc := range []string{`{"Monday": {`, `{"Monday": nope}`, ``, `{} {}`} {
		_, err := Parse(doc, schema)
		if !errors.Is(err, apperr.ErrSyntaxInvalid) {
			t.Errorf("Parse(%q) err = %v, want SyntaxInvalid", doc, err)
		}
	}

	_, err := Parse(`{"Monday": nope}`, schema)
	ge := asGenerationError(t, err)
	if ge.Err == nil {
		t.Error("original parse error should be preserved")
	}
	if !strings.Contains(ge.Excerpt, "nope") {
		t.Errorf("excerpt = %q, want offending text", ge.Excerpt)
	}
}

func TestParse_ShapeInvalid(t *testing.T) {
	schema := models.MustSchema(models.Nutrition)
	base := testutil.Document(schema, 2)

	tests := []struct {
		name     string
		mut      func(week map[string]any)
		day      string
		category string
		field    string
	}{
		{
			name: "missing Sunday",
			mut:  func(week map[string]any) { delete(week, "Sunday") },
			day:  "Sunday",
		},
		{
			name: "calories as string",
			mut: func(week map[string]any) {
				slot(week, "Tuesday", "lunch")[1].(map[string]any)["calories"] = "200"
			},
			day: "Tuesday", category: "lunch", field: "calories",
		},
		{
			name: "unknown day",
			mut:  func(week map[string]any) { week["Funday"] = map[string]any{} },
			day:  "Funday",
		},
		{
			name: "missing category",
			mut:  func(week map[string]any) { delete(week["Wednesday"].(map[string]any), "snacks") },
			day:  "Wednesday", category: "snacks",
		},
		{
			name: "unexpected category",
			mut:  func(week map[string]any) { week["Monday"].(map[string]any)["brunch"] = []any{} },
			day:  "Monday", category: "brunch",
		},
		{
			name: "missing required field",
			mut: func(week map[string]any) {
				delete(slot(week, "Monday", "dinner")[0].(map[string]any), "protein")
			},
			day: "Monday", category: "dinner", field: "protein",
		},
		{
			name: "null required field",
			mut: func(week map[string]any) {
				slot(week, "Monday", "dinner")[0].(map[string]any)["fat"] = nil
			},
			day: "Monday", category: "dinner", field: "fat",
		},
		{
			name: "negative number",
			mut: func(week map[string]any) {
				slot(week, "Saturday", "snacks")[0].(map[string]any)["carbs"] = -1
			},
			day: "Saturday", category: "snacks", field: "carbs",
		},
		{
			name: "blank name",
			mut: func(week map[string]any) {
				slot(week, "Monday", "breakfast")[0].(map[string]any)["name"] = "   "
			},
			day: "Monday", category: "breakfast", field: "name",
		},
		{
			name: "category not a list",
			mut:  func(week map[string]any) { week["Friday"].(map[string]any)["lunch"] = "soup" },
			day:  "Friday", category: "lunch",
		},
		{
			name: "item not an object",
			mut: func(week map[string]any) {
				week["Friday"].(map[string]any)["lunch"] = []any{"soup"}
			},
			day: "Friday", category: "lunch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(mutate(t, base, tt.mut), schema)
			if !errors.Is(err, apperr.ErrShapeInvalid) {
				t.Fatalf("err = %v, want ShapeInvalid", err)
			}
			ge := asGenerationError(t, err)
			if ge.Day != tt.day || ge.Category != tt.category || ge.Field != tt.field {
				t.Errorf("location = %q/%q/%q, want %q/%q/%q",
					ge.Day, ge.Category, ge.Field, tt.day, tt.category, tt.field)
			}
		})
	}
}

func TestParse_TopLevelNotObject(t *testing.T) {
	_, err := Parse(`[1,2,3]`, models.MustSchema(models.Nutrition))
	if !errors.Is(err, apperr.ErrShapeInvalid) {
		t.Fatalf("err = %v, want ShapeInvalid", err)
	}
}

func TestParse_IntegerFields(t *testing.T) {
	schema := models.MustSchema(models.Exercise)
	base := testutil.Document(schema, 1)

	ok := mutate(t, base, func(week map[string]any) {
		slot(week, "Monday", "Strength")[0].(map[string]any)["sets"] = 3.0
	})
	if _, err := Parse(ok, schema); err != nil {
		t.Errorf("integral float should be accepted: %v", err)
	}

	bad := mutate(t, base, func(week map[string]any) {
		slot(week, "Monday", "Strength")[0].(map[string]any)["reps"] = 2.5
	})
	_, err := Parse(bad, schema)
	if !errors.Is(err, apperr.ErrShapeInvalid) {
		t.Fatalf("err = %v, want ShapeInvalid", err)
	}
	if ge := asGenerationError(t, err); ge.Field != "reps" {
		t.Errorf("field = %q, want reps", ge.Field)
	}

	for _, v := range []any{1e19, float64(math.MaxInt32) + 1} {
		huge := mutate(t, base, func(week map[string]any) {
			slot(week, "Tuesday", "Strength")[0].(map[string]any)["sets"] = v
		})
		_, err := Parse(huge, schema)
		if !errors.Is(err, apperr.ErrShapeInvalid) {
			t.Fatalf("sets=%v: err = %v, want ShapeInvalid", v, err)
		}
		ge := asGenerationError(t, err)
		if ge.Day != "Tuesday" || ge.Field != "sets" || !strings.Contains(ge.Reason, "out of range") {
			t.Errorf("sets=%v: got %s", v, ge.Error())
		}
	}

	largest := mutate(t, base, func(week map[string]any) {
		slot(week, "Tuesday", "Strength")[0].(map[string]any)["reps"] = math.MaxInt32
	})
	if _, err := Parse(largest, schema); err != nil {
		t.Errorf("MaxInt32 should be accepted: %v", err)
	}
}

func TestParse_AllCategoriesEmpty(t *testing.T) {
	schema := models.MustSchema(models.Nutrition)
	doc := mutate(t, testutil.Document(schema, 1), func(week map[string]any) {
		for _, day := range models.Weekdays {
			for _, c := range schema.Categories {
				week[day].(map[string]any)[c.Name] = []any{}
			}
		}
	})
	_, err := Parse(doc, schema)
	if !errors.Is(err, apperr.ErrShapeInvalid) {
		t.Fatalf("err = %v, want ShapeInvalid", err)
	}
}

func TestParse_DuplicateKeys(t *testing.T) {
	schema := models.MustSchema(models.Nutrition)
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(testutil.Document(schema, 1))); err != nil {
		t.Fatal(err)
	}
	doc := buf.String()

	// encoding/json emits map keys sorted, so each object starts with a
	// known key that can be repeated by splicing text.
	tests := []struct {
		name     string
		doc      string
		day      string
		category string
		field    string
	}{
		{
			name: "day",
			doc:  strings.Replace(doc, `{"Friday":`, `{"Friday":{},"Friday":`, 1),
			day:  "Friday",
		},
		{
			name:     "category",
			doc:      strings.Replace(doc, `"Monday":{"breakfast":`, `"Monday":{"breakfast":[],"breakfast":`, 1),
			day:      "Monday",
			category: "breakfast",
		},
		{
			name:     "field",
			doc:      strings.Replace(doc, `"calories":101.5`, `"calories":1,"calories":101.5`, 1),
			day:      "Friday",
			category: "breakfast",
			field:    "calories",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.doc == doc {
				t.Fatal("document was not modified")
			}
			_, err := Parse(tt.doc, schema)
			if !errors.Is(err, apperr.ErrShapeInvalid) {
				t.Fatalf("err = %v, want ShapeInvalid", err)
			}
			ge := asGenerationError(t, err)
			if ge.Day != tt.day || ge.Category != tt.category || ge.Field != tt.field {
				t.Errorf("location = %q/%q/%q, want %q/%q/%q",
					ge.Day, ge.Category, ge.Field, tt.day, tt.category, tt.field)
			}
		})
	}
}

func TestParse_EmptyCategoryAccepted(t *testing.T) {
	schema := models.MustSchema(models.Nutrition)
	doc := mutate(t, testutil.Document(schema, 2), func(week map[string]any) {
		week["Monday"].(map[string]any)["snacks"] = []any{}
	})
	plan, err := Parse(doc, schema)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if items := plan.Items("Monday", "snacks"); items == nil || len(items) != 0 {
		t.Errorf("snacks = %#v, want empty non-nil", items)
	}
}

func TestParse_ExtraItemKeysIgnored(t *testing.T) {
	schema := models.MustSchema(models.Nutrition)
	doc := mutate(t, testutil.Document(schema, 1), func(week map[string]any) {
		slot(week, "Monday", "lunch")[0].(map[string]any)["note"] = "high fibre"
	})
	if _, err := Parse(doc, schema); err != nil {
		t.Fatalf("Parse: %v", err)
	}
}

func TestExtract_FencedDocument(t *testing.T) {
	schema := models.MustSchema(models.Nutrition)
	plan, err := Extract(testutil.Fenced(testutil.Document(schema, 2)), schema)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if plan.Len() != 56 {
		t.Errorf("items = %d, want 56", plan.Len())
	}
}
