// Package planservice runs the plan pipeline: prompt, generation, parsing,
// synchronization, and reconstruction of the nested view.
package planservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/vitalplan/internal/apperr"
	"github.com/starford/vitalplan/internal/checksum"
	"github.com/starford/vitalplan/internal/llm"
	"github.com/starford/vitalplan/internal/models"
	"github.com/starford/vitalplan/internal/parser"
	"github.com/starford/vitalplan/internal/planstore"
	"github.com/starford/vitalplan/internal/prompt"
	"github.com/starford/vitalplan/internal/sse"
	"github.com/starford/vitalplan/internal/storage"
)

const (
	defaultTimeout     = 60 * time.Second
	defaultMaxArchived = 20
)

// PlanView is the nested plan of one owner and domain plus metadata.
type PlanView struct {
	OwnerID   int64         `json:"owner_id"`
	Domain    models.Domain `json:"domain"`
	Plan      *models.Plan  `json:"plan"`
	Records   int           `json:"records"`
	Revision  string        `json:"revision"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// ContractView describes what the generation service is asked to return.
type ContractView struct {
	Domain            models.Domain `json:"domain"`
	Categories        []string      `json:"categories"`
	DefaultPreference string        `json:"default_preference"`
	Shape             string        `json:"shape"`
	Prompt            string        `json:"prompt"`
}

// Publisher receives plan change events.
type Publisher interface {
	Publish(sse.Event)
}

// Options tunes the pipeline.
type Options struct {
	// Timeout bounds a single generation call.
	Timeout time.Duration
	// KeepAccepted archives accepted responses too, not only rejected ones.
	KeepAccepted bool
	// MaxArchived is the number of responses kept per owner and domain.
	MaxArchived int
}

// Service coordinates the generator, plan store, and response archive.
type Service struct {
	gen     llm.TextGenerator
	store   planstore.Store
	archive storage.Provider
	events  Publisher
	opts    Options
	now     func() time.Time
}

// NewService creates a new plan service. archive and events may be nil.
func NewService(gen llm.TextGenerator, store planstore.Store, archive storage.Provider, events Publisher, opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxArchived <= 0 {
		opts.MaxArchived = defaultMaxArchived
	}
	return &Service{
		gen:     gen,
		store:   store,
		archive: archive,
		events:  events,
		opts:    opts,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// GeneratePlan asks the generation service for a new weekly plan and, if
// the response is valid, replaces the owner's stored plan with it. On any
// failure the stored plan is left as it was and the error is a classified
// *apperr.GenerationError.
func (s *Service) GeneratePlan(ctx context.Context, ownerID int64, domain models.Domain, preferences string) (*PlanView, error) {
	schema, err := resolve(ownerID, domain)
	if err != nil {
		return nil, err
	}
	log := slog.With(slog.Int64("owner_id", ownerID), slog.String("domain", string(domain)))

	text := prompt.Build(schema, preferences)
	gctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	resp, err := s.gen.GenerateContent(gctx, text)
	cancel()
	if err != nil {
		log.Warn("generation failed", slog.String("error", err.Error()))
		return nil, apperr.NewGenerationError(apperr.KindServiceUnavailable, "generation service call failed", err)
	}
	log.Info("generation completed",
		slog.String("model", resp.Usage.Model),
		slog.Int("prompt_tokens", resp.Usage.PromptTokens),
		slog.Int("completion_tokens", resp.Usage.CompletionTokens))

	receivedAt := s.now()
	plan, err := parser.Extract(resp.Content, schema)
	if err != nil {
		s.reject(log, ownerID, domain, receivedAt, resp.Content, err)
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, apperr.NewGenerationError(apperr.KindServiceUnavailable, "request cancelled before storing", err)
	}

	records := models.Flatten(plan, ownerID, receivedAt)
	n, err := s.store.ReplacePlan(ctx, ownerID, domain, records)
	if err != nil {
		log.Error("plan replace failed", slog.String("kind", string(apperr.KindStorageFailure)), slog.String("error", err.Error()))
		return nil, apperr.NewGenerationError(apperr.KindStorageFailure, "replace plan", err)
	}
	log.Info("plan replaced", slog.Int("records", n))

	if s.opts.KeepAccepted {
		s.archiveResponse(log, ownerID, domain, receivedAt, models.OutcomeAccepted, resp.Content)
	}

	view, err := s.view(ownerID, domain, records)
	if err != nil {
		return nil, err
	}
	s.publish(sse.EventPlanGenerated, ownerID, map[string]any{
		"domain":   domain,
		"records":  n,
		"revision": view.Revision,
	})
	return view, nil
}

// GetPlan returns the stored plan, or apperr.ErrNotFound when the owner has
// no records in domain.
func (s *Service) GetPlan(ctx context.Context, ownerID int64, domain models.Domain) (*PlanView, error) {
	if _, err := resolve(ownerID, domain); err != nil {
		return nil, err
	}
	records, err := s.store.Records(ctx, ownerID, domain)
	if err != nil {
		return nil, apperr.NewGenerationError(apperr.KindStorageFailure, "read plan", err)
	}
	view, err := s.view(ownerID, domain, records)
	if err != nil {
		return nil, err
	}
	if view.Plan == nil {
		return nil, apperr.ErrNotFound
	}
	return view, nil
}

// DeletePlan removes the stored plan and returns how many records were
// removed. Deleting an absent plan returns 0.
func (s *Service) DeletePlan(ctx context.Context, ownerID int64, domain models.Domain) (int, error) {
	if _, err := resolve(ownerID, domain); err != nil {
		return 0, err
	}
	n, err := s.store.DeletePlan(ctx, ownerID, domain)
	if err != nil {
		return 0, apperr.NewGenerationError(apperr.KindStorageFailure, "delete plan", err)
	}
	if n > 0 {
		slog.Info("plan deleted", slog.Int64("owner_id", ownerID), slog.String("domain", string(domain)), slog.Int("records", n))
		s.publish(sse.EventPlanDeleted, ownerID, map[string]any{"domain": domain, "records": n})
	}
	return n, nil
}

// Contract describes the document shape requested for domain.
func (s *Service) Contract(domain models.Domain) (*ContractView, error) {
	schema, err := models.SchemaFor(domain)
	if err != nil {
		return nil, apperr.Invalid("%v", err)
	}
	return &ContractView{
		Domain:            domain,
		Categories:        schema.CategoryNames(),
		DefaultPreference: schema.DefaultPreference,
		Shape:             prompt.Contract(schema),
		Prompt:            prompt.Build(schema, ""),
	}, nil
}

// Rejections lists the archived rejected responses of an owner, newest
// first.
func (s *Service) Rejections(_ context.Context, ownerID int64, domain models.Domain) ([]models.ArchivedResponse, error) {
	if _, err := resolve(ownerID, domain); err != nil {
		return nil, err
	}
	out := []models.ArchivedResponse{}
	if s.archive == nil {
		return out, nil
	}
	items, err := s.archive.List(models.ArchiveDir(domain, ownerID))
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if it.Outcome == models.OutcomeRejected {
			out = append(out, it)
		}
	}
	return out, nil
}

// RejectedResponse returns the raw text of one archived response.
func (s *Service) RejectedResponse(_ context.Context, ownerID int64, domain models.Domain, path string) ([]byte, error) {
	if _, err := resolve(ownerID, domain); err != nil {
		return nil, err
	}
	meta, err := models.ParseArchivePath(path)
	if err != nil || meta.OwnerID != ownerID || meta.Domain != domain || s.archive == nil {
		return nil, apperr.ErrNotFound
	}
	return s.archive.Read(path)
}

func (s *Service) view(ownerID int64, domain models.Domain, records []models.Record) (*PlanView, error) {
	view := &PlanView{OwnerID: ownerID, Domain: domain, Records: len(records)}
	plan, ok := models.Assemble(domain, records)
	if !ok {
		return view, nil
	}
	data, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("planservice: encode plan: %w", err)
	}
	view.Plan = plan
	view.Revision = checksum.Sum(data)
	view.UpdatedAt = models.Newest(records)
	return view, nil
}

func (s *Service) reject(log *slog.Logger, ownerID int64, domain models.Domain, at time.Time, raw string, err error) {
	attrs := []any{slog.String("kind", string(apperr.KindOf(err))), slog.String("error", err.Error())}
	var ge *apperr.GenerationError
	if errors.As(err, &ge) {
		attrs = append(attrs, slog.String("location", ge.Location()))
	}
	log.Warn("generation rejected", attrs...)

	s.archiveResponse(log, ownerID, domain, at, models.OutcomeRejected, raw)
	s.publish(sse.EventPlanRejected, ownerID, map[string]any{
		"domain": domain,
		"kind":   apperr.KindOf(err),
		"error":  err.Error(),
	})
}

// archiveResponse writes raw to the archive and trims the owner's directory
// to MaxArchived entries. Failures are logged only.
func (s *Service) archiveResponse(log *slog.Logger, ownerID int64, domain models.Domain, at time.Time, outcome, raw string) {
	if s.archive == nil {
		return
	}
	path := models.ArchivePath(domain, ownerID, at, outcome)
	if err := s.archive.Write(path, []byte(raw)); err != nil {
		log.Warn("archive write failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	items, err := s.archive.List(models.ArchiveDir(domain, ownerID))
	if err != nil {
		log.Warn("archive list failed", slog.String("error", err.Error()))
		return
	}
	for i := s.opts.MaxArchived; i < len(items); i++ {
		if err := s.archive.Delete(items[i].Path); err != nil {
			log.Warn("archive prune failed", slog.String("path", items[i].Path), slog.String("error", err.Error()))
		}
	}
}

func (s *Service) publish(kind string, ownerID int64, data map[string]any) {
	if s.events == nil {
		return
	}
	s.events.Publish(sse.Event{Type: kind, OwnerID: ownerID, Data: data})
}

func resolve(ownerID int64, domain models.Domain) (*models.Schema, error) {
	if ownerID <= 0 {
		return nil, apperr.Invalid("owner id must be positive, got %d", ownerID)
	}
	schema, err := models.SchemaFor(domain)
	if err != nil {
		return nil, apperr.Invalid("%v", err)
	}
	return schema, nil
}
