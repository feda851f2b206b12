package services

import (
	"context"
	"fmt"
	"sort"

	"menusync/internal/backend"
	"menusync/internal/domain"
	"menusync/internal/errs"
	applog "menusync/internal/log"
	"menusync/internal/repos"
)

type DuplicateService struct {
	Backends backend.Resolver
	Cache    *repos.Cache
}

func NewDuplicateService(b backend.Resolver, cache *repos.Cache) *DuplicateService {
	return &DuplicateService{Backends: b, Cache: cache}
}

// GroupOutcome is the cleanup result for one duplicated name.
type GroupOutcome struct {
	Type    domain.EntityType `json:"type"`
	Name    string            `json:"name"`
	Kept    string            `json:"kept"`
	Deleted []string          `json:"deleted"`
	Failed  []string          `json:"failed,omitempty"`
}

type CleanupResult struct {
	Environment domain.Environment `json:"environment"`
	Groups      []GroupOutcome     `json:"groups"`
}

// Complete reports whether every deletion candidate was removed.
func (r CleanupResult) Complete() bool {
	for _, g := range r.Groups {
		if len(g.Failed) > 0 {
			return false
		}
	}
	return true
}

func (r CleanupResult) DeletedCount() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Deleted)
	}
	return n
}

func (s *DuplicateService) FindDuplicates(ctx context.Context, env domain.Environment) (domain.Duplicates, error) {
	cat, err := s.Backends.For(env)
	if err != nil {
		return domain.Duplicates{}, err
	}
	idx, err := scanEnv(ctx, cat, s.Cache, env)
	if err != nil {
		return domain.Duplicates{}, err
	}
	return idx.duplicates(), nil
}

type plannedGroup struct {
	typ        domain.EntityType
	name       string
	keep       backend.Object
	candidates []string
}

// Cleanup keeps the highest-version member of each duplicate group (ties go
// to the smallest id) and deletes the rest in one batch. A partial delete
// returns the per-group outcome together with the backend error; only fully
// cleaned groups are re-pointed in the cache.
func (s *DuplicateService) Cleanup(ctx context.Context, env domain.Environment) (CleanupResult, error) {
	res := CleanupResult{Environment: env}
	cat, err := s.Backends.For(env)
	if err != nil {
		return res, err
	}
	idx, err := scanEnv(ctx, cat, s.Cache, env)
	if err != nil {
		return res, err
	}

	plan := planCleanup(idx)
	if len(plan) == 0 {
		return res, nil
	}
	var union []string
	for _, g := range plan {
		union = append(union, g.candidates...)
	}

	deleted, derr := cat.BatchDelete(ctx, union)
	gone := map[string]bool{}
	for _, id := range deleted {
		gone[id] = true
	}

	for _, g := range plan {
		out := GroupOutcome{Type: g.typ, Name: g.name, Kept: g.keep.ID, Deleted: []string{}}
		for _, id := range g.candidates {
			if gone[id] {
				out.Deleted = append(out.Deleted, id)
			} else {
				out.Failed = append(out.Failed, id)
			}
		}
		res.Groups = append(res.Groups, out)
		applog.Audit(nil, "cleanup.group", map[string]any{
			"env": env, "type": g.typ, "name": g.name, "kept": g.keep.ID, "deleted": out.Deleted, "failed": out.Failed,
		})

		if len(out.Failed) > 0 {
			continue
		}
		if err := s.repoint(ctx, env, g, out.Deleted); err != nil {
			return res, err
		}
	}

	if derr != nil {
		return res, fmt.Errorf("cleanup %s: %d of %d deletions failed: %w", env, len(union)-countIn(union, gone), len(union), derr)
	}
	if !res.Complete() {
		return res, fmt.Errorf("cleanup %s: %w", env, errs.NewBackendError("batch-delete", errs.APIError{
			Category: "API_ERROR", Code: "INCOMPLETE_DELETE", Detail: "backend did not confirm every deletion",
		}))
	}
	return res, nil
}

func (s *DuplicateService) repoint(ctx context.Context, env domain.Environment, g plannedGroup, deleted []string) error {
	var err error
	if g.typ == domain.EntityCategory {
		_, err = s.Cache.UpsertCategory(ctx, categoryRecord(env, g.keep))
	} else {
		_, err = s.Cache.UpsertItem(ctx, itemRecord(env, g.keep))
	}
	if err != nil {
		return err
	}
	for _, id := range deleted {
		if err := s.Cache.Delete(ctx, env, g.typ, id); err != nil {
			return err
		}
	}
	return nil
}

func planCleanup(idx *catalogIndex) []plannedGroup {
	var plan []plannedGroup
	for _, typ := range []domain.EntityType{domain.EntityCategory, domain.EntityItem} {
		groups := duplicateGroups(idx.objects(typ))
		names := make([]string, 0, len(groups))
		for n := range groups {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			members := idx.byName(typ, n)
			g := plannedGroup{typ: typ, name: n, keep: members[0]}
			for _, m := range members[1:] {
				g.candidates = append(g.candidates, m.ID)
			}
			plan = append(plan, g)
		}
	}
	return plan
}

func countIn(ids []string, set map[string]bool) int {
	n := 0
	for _, id := range ids {
		if set[id] {
			n++
		}
	}
	return n
}
