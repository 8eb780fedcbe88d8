package search

import (
	"context"
	"log"

	"refacao/api/internal/store"
)

// cardSearcher lets tests stand in for the Meilisearch client.
type cardSearcher interface {
	Healthy() bool
	SearchCards(q string, limit int) ([]store.Card, error)
	IndexCards(cards []store.Card) error
}

type pgSearcher interface {
	SearchCards(ctx context.Context, q string, limit int) ([]store.Card, error)
}

// Service is the facade that tries Meilisearch first and falls back to a
// Postgres lookup. meili may be nil when Meilisearch is not configured.
type Service struct {
	meili cardSearcher
	pg    pgSearcher
}

func NewService(meili *Meili, pg *PgLookup) *Service {
	if meili == nil {
		// Avoid a typed-nil interface so the Healthy check below short-circuits.
		return &Service{pg: pg}
	}
	return &Service{meili: meili, pg: pg}
}

// SearchCards runs a typeahead query. A failing search engine degrades to
// the Postgres path; a failing Postgres path degrades to empty results.
func (s *Service) SearchCards(ctx context.Context, q string, limit int) []store.Card {
	if s.meili != nil && s.meili.Healthy() {
		cards, err := s.meili.SearchCards(q, limit)
		if err == nil {
			return nonNil(cards)
		}
		log.Printf("search: meilisearch error, falling back to postgres: %v", err)
	}

	cards, err := s.pg.SearchCards(ctx, q, limit)
	if err != nil {
		log.Printf("search: postgres lookup error: %v", err)
		return []store.Card{}
	}
	return nonNil(cards)
}

// ReindexAll pushes every known card into Meilisearch, called at bootstrap.
func (s *Service) ReindexAll(cards []store.Card) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	if err := s.meili.IndexCards(cards); err != nil {
		log.Printf("search: reindex cards: %v", err)
	}
}

// IndexCard indexes a single card, fire-and-forget.
func (s *Service) IndexCard(card store.Card) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexCards([]store.Card{card}); err != nil {
			log.Printf("search: index card %s: %v", card.TrelloCardID, err)
		}
	}()
}

func nonNil(cards []store.Card) []store.Card {
	if cards == nil {
		return []store.Card{}
	}
	return cards
}
