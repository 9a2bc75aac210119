package services

import (
	"context"
	"fmt"
	"time"

	"financecalc/internal/core"
	"financecalc/internal/log"
	"financecalc/internal/store"
)

// Seeder writes the starter dataset into an empty store.
type Seeder struct {
	store  store.Store
	logger *log.Logger
	now    func() time.Time
}

func NewSeeder(st store.Store, logger *log.Logger, now func() time.Time) *Seeder {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Seeder{store: st, logger: logger.WithComponent(log.ComponentSeed), now: now}
}

// Seed returns state unchanged when it is already seeded. Otherwise the
// starter data is written if both the entry and the shop item collections
// are empty, and the returned state is marked seeded either way so the
// check never runs again. The caller persists the returned state.
func (s *Seeder) Seed(ctx context.Context, state core.SeedState) (core.SeedState, error) {
	if state.Seeded {
		return state, nil
	}

	entries, err := store.First(ctx, s.store.Entries())
	if err != nil {
		return state, fmt.Errorf("read entries: %w", err)
	}
	items, err := store.First(ctx, s.store.ShopItems())
	if err != nil {
		return state, fmt.Errorf("read shop items: %w", err)
	}

	now := s.now()
	if len(entries) == 0 && len(items) == 0 {
		if err := s.write(ctx, core.StarterData(now)); err != nil {
			return state, err
		}
	} else {
		s.logger.InfoContext(ctx, "Store already holds data, skipping starter dataset",
			log.FieldCount, len(entries)+len(items))
	}

	return core.SeedState{Seeded: true, Version: core.SeedVersion, SeededAt: now}, nil
}

func (s *Seeder) write(ctx context.Context, data core.SeedData) error {
	for _, e := range data.Entries {
		if _, err := s.store.Entries().Insert(ctx, e); err != nil {
			return fmt.Errorf("seed entry %q: %w", e.Name, err)
		}
	}
	for _, it := range data.ShopItems {
		if _, err := s.store.ShopItems().Insert(ctx, it); err != nil {
			return fmt.Errorf("seed shop item %q: %w", it.Name, err)
		}
	}
	for _, it := range data.SoldItems {
		if _, err := s.store.SoldItems().Insert(ctx, it); err != nil {
			return fmt.Errorf("seed sold item %d/%d: %w", it.Month, it.Year, err)
		}
	}
	s.logger.InfoContext(ctx, "Starter dataset written",
		"entries", len(data.Entries),
		"shop_items", len(data.ShopItems),
		"sold_items", len(data.SoldItems))
	return nil
}

// Bootstrap loads the seed state, seeds if needed and saves the new state.
func (s *Seeder) Bootstrap(ctx context.Context, states store.SeedStateStore) (core.SeedState, error) {
	state, err := states.LoadSeedState(ctx)
	if err != nil {
		return state, fmt.Errorf("load seed state: %w", err)
	}
	next, err := s.Seed(ctx, state)
	if err != nil {
		return state, err
	}
	if next != state {
		if err := states.SaveSeedState(ctx, next); err != nil {
			return state, fmt.Errorf("save seed state: %w", err)
		}
	}
	return next, nil
}
