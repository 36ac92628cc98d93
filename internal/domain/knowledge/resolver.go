package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	apperrors "github.com/yanqian/interview-evaluator/pkg/errors"
)

// ResolveRequest asks for Count questions of a technology for a candidate.
type ResolveRequest struct {
	Technology  string
	Count       int
	CandidateID int64
}

// Resolver selects bank questions for an interview. It never writes.
type Resolver struct {
	repo   Repository
	usage  UsageLookup
	logger *slog.Logger
}

// NewResolver constructs a Resolver. usage may be nil, in which case every
// question is treated as unused.
func NewResolver(repo Repository, usage UsageLookup, logger *slog.Logger) *Resolver {
	return &Resolver{repo: repo, usage: usage, logger: logger.With("component", "knowledge.resolver")}
}

// Resolve returns up to req.Count questions ordered by preference: questions
// outside the candidate's cycle first, then least recently used, then
// creation order. When fewer than req.Count exist the short list is returned
// together with a not_found error so the caller can decide how to proceed.
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) ([]Question, error) {
	tech := NormalizeTechnology(req.Technology)
	if tech == "" {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "technology cannot be empty", nil)
	}
	if req.Count <= 0 {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "count must be positive", nil)
	}
	all, err := r.repo.ListByTechnology(ctx, tech)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "failed to list bank questions", err)
	}
	excluded, err := r.repo.NegativeFeedbackIDs(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "failed to load question feedback", err)
	}
	usage := map[int64]Usage{}
	if r.usage != nil {
		usage, err = r.usage.KnowledgeUsage(ctx, req.CandidateID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorage, "failed to load question usage", err)
		}
	}

	superseded := supersededIDs(all)
	candidates := make([]Question, 0, len(all))
	for _, q := range all {
		if _, bad := excluded[q.ID]; bad {
			continue
		}
		if _, old := superseded[q.ID]; old {
			continue
		}
		candidates = append(candidates, q)
	}
	rank(candidates, usage)

	if len(candidates) < req.Count {
		r.logger.Warn("bank has fewer questions than requested", "technology", tech, "requested", req.Count, "available", len(candidates))
		return candidates, apperrors.WrapContext(apperrors.CodeNotFound,
			fmt.Sprintf("only %d of %d questions available for %q", len(candidates), req.Count, tech), nil,
			"technology", tech)
	}
	return candidates[:req.Count], nil
}

// supersededIDs lists entries that a later revision replaces. Only the newest
// revision of a question is offered.
func supersededIDs(questions []Question) map[int64]struct{} {
	out := make(map[int64]struct{})
	for _, q := range questions {
		if q.RevisionOf != nil {
			out[*q.RevisionOf] = struct{}{}
		}
	}
	return out
}

func rank(questions []Question, usage map[int64]Usage) {
	sort.SliceStable(questions, func(i, j int) bool {
		ui, uj := usage[questions[i].ID], usage[questions[j].ID]
		if ui.InCycle != uj.InCycle {
			return !ui.InCycle
		}
		if !ui.LastUsedAt.Equal(uj.LastUsedAt) {
			return ui.LastUsedAt.Before(uj.LastUsedAt)
		}
		if !questions[i].CreatedAt.Equal(questions[j].CreatedAt) {
			return questions[i].CreatedAt.Before(questions[j].CreatedAt)
		}
		return questions[i].ID < questions[j].ID
	})
}
