package search

import (
	"context"
	"database/sql"
	"fmt"

	"refacao/api/internal/store"
)

// PgLookup is the Postgres fallback for card-title typeahead. Plain ILIKE is
// enough at the card counts this system sees.
type PgLookup struct {
	db *sql.DB
}

func NewPgLookup(db *sql.DB) *PgLookup {
	return &PgLookup{db: db}
}

func (p *PgLookup) SearchCards(ctx context.Context, q string, limit int) ([]store.Card, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT trello_card_id, titulo
		FROM cards
		WHERE titulo ILIKE '%' || $1 || '%'
		ORDER BY titulo ASC
		LIMIT $2
	`, q, limit)
	if err != nil {
		return nil, fmt.Errorf("search cards: %w", err)
	}
	defer rows.Close()

	cards := make([]store.Card, 0)
	for rows.Next() {
		var card store.Card
		if err := rows.Scan(&card.TrelloCardID, &card.Titulo); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}
	return cards, nil
}
