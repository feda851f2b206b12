package services

import (
	"context"

	"menusync/internal/backend"
	"menusync/internal/domain"
	applog "menusync/internal/log"
	"menusync/internal/repos"
	"menusync/internal/stores"
)

type LocationService struct {
	Backends backend.Resolver
	Cache    *repos.Cache
}

func NewLocationService(b backend.Resolver, cache *repos.Cache) *LocationService {
	return &LocationService{Backends: b, Cache: cache}
}

// Sync mirrors every remote location into the cache.
func (s *LocationService) Sync(ctx context.Context, env domain.Environment) ([]domain.Location, error) {
	cat, err := s.Backends.For(env)
	if err != nil {
		return nil, err
	}
	remote, err := cat.ListLocations(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Location, 0, len(remote))
	for _, l := range remote {
		num, _ := stores.ParseNumber(l.Name)
		rec := domain.Location{
			Environment: env,
			RemoteID:    l.ID,
			Name:        l.Name,
			StoreNumber: num,
			Address:     l.Address.String(),
			Phone:       l.PhoneNumber,
		}
		if _, err := s.Cache.UpsertLocation(ctx, rec); err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// EnsureStores creates the locations whose formatted name is not present
// remotely and returns how many were created.
func (s *LocationService) EnsureStores(ctx context.Context, env domain.Environment, list []stores.Store, test bool) (int, error) {
	cat, err := s.Backends.For(env)
	if err != nil {
		return 0, err
	}
	remote, err := cat.ListLocations(ctx)
	if err != nil {
		return 0, err
	}
	have := map[string]bool{}
	for _, l := range remote {
		have[l.Name] = true
	}
	created := 0
	for _, st := range list {
		loc := stores.ToLocation(st, test)
		if have[loc.Name] {
			continue
		}
		got, err := cat.CreateLocation(ctx, loc)
		if err != nil {
			return created, err
		}
		have[loc.Name] = true
		created++
		applog.Audit(nil, "location.create", map[string]any{"env": env, "name": got.Name, "remote_id": got.ID})
	}
	return created, nil
}
