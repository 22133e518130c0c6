// Package testutil provides shared test helpers: temporary databases and
// archives, canned generation documents, and a stub generator.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/starford/vitalplan/internal/llm"
	"github.com/starford/vitalplan/internal/models"
	"github.com/starford/vitalplan/internal/planstore"
	"github.com/starford/vitalplan/internal/storage"
)

// TestDB creates a temporary SQLite plan store that is automatically cleaned up.
func TestDB(t *testing.T) *planstore.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "vitalplan-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := planstore.Open(planstore.DriverSQLite, dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestArchive creates a temporary response archive.
func TestArchive(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, fs
}

// Document renders a complete, valid plan document for schema with
// perCategory items in every category. Item names encode their slot, e.g.
// "Monday breakfast 1".
func Document(schema *models.Schema, perCategory int) string {
	week := make(map[string]map[string][]map[string]any, len(models.Weekdays))
	for _, day := range models.Weekdays {
		cats := make(map[string][]map[string]any, len(schema.Categories))
		for _, c := range schema.Categories {
			items := make([]map[string]any, 0, perCategory)
			for i := 1; i <= perCategory; i++ {
				items = append(items, itemJSON(schema, fmt.Sprintf("%s %s %d", day, c.Name, i), i))
			}
			cats[c.Name] = items
		}
		week[day] = cats
	}
	out, err := json.MarshalIndent(week, "", "  ")
	if err != nil {
		panic(err)
	}
	return string(out)
}

// Fenced wraps doc the way chat models usually answer.
func Fenced(doc string) string {
	return "```json\n" + doc + "\n```"
}

func itemJSON(schema *models.Schema, name string, n int) map[string]any {
	it := map[string]any{schema.Name.Key: name}
	for _, f := range schema.Fields {
		switch {
		case f.Optional && n%2 == 0:
			it[f.Key] = nil
		case f.Kind == models.KindInteger:
			it[f.Key] = 10 + n
		default:
			it[f.Key] = 100.5 + float64(n)
		}
	}
	return it
}

// StubGenerator returns canned responses and records the prompts it saw.
type StubGenerator struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Prompts   []string
	// Block, when non-nil, is waited on (or ctx cancellation) before answering.
	Block chan struct{}
}

// GenerateContent implements llm.TextGenerator.
func (s *StubGenerator) GenerateContent(ctx context.Context, prompt string) (llm.ContentResponse, error) {
	s.mu.Lock()
	s.Prompts = append(s.Prompts, prompt)
	call := len(s.Prompts) - 1
	s.mu.Unlock()

	if s.Block != nil {
		select {
		case <-s.Block:
		case <-ctx.Done():
			return llm.ContentResponse{}, ctx.Err()
		}
	}
	if s.Err != nil {
		return llm.ContentResponse{}, s.Err
	}
	if len(s.Responses) == 0 {
		return llm.ContentResponse{}, fmt.Errorf("stub: no response configured")
	}
	resp := s.Responses[len(s.Responses)-1]
	if call < len(s.Responses) {
		resp = s.Responses[call]
	}
	return llm.ContentResponse{Content: resp, Usage: llm.TokenUsage{Model: "stub"}}, nil
}

// Calls returns how many prompts the stub has received.
func (s *StubGenerator) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Prompts)
}
