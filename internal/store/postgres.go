package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// GetCardByTitle resolves an exact human-entered title to the card record.
// Returns sql.ErrNoRows untouched so callers can treat not-found distinctly.
func (s *PostgresStore) GetCardByTitle(ctx context.Context, titulo string) (Card, error) {
	var card Card
	err := s.db.QueryRowContext(ctx, `
		SELECT trello_card_id, titulo
		FROM cards
		WHERE titulo=$1
	`, titulo).Scan(&card.TrelloCardID, &card.Titulo)
	if err != nil {
		return Card{}, err
	}
	return card, nil
}

func (s *PostgresStore) ListCards(ctx context.Context) ([]Card, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trello_card_id, titulo
		FROM cards
		ORDER BY titulo ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	items := make([]Card, 0)
	for rows.Next() {
		var item Card
		if err := rows.Scan(&item.TrelloCardID, &item.Titulo); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}
	return items, nil
}

// ListReworkByCard loads every rework record of one card, exact match on the
// external card id. Result sets are small (content items x rework count).
func (s *PostgresStore) ListReworkByCard(ctx context.Context, cardID string) ([]ReworkRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id_trello_card, titulo, numero_conteudo, numero_refacao,
			tipo_refacao, motivo_refacao, time_solicitou_refacao,
			cliente_solicitou_refacao, time_responsavel, updated_at
		FROM cards_refacao
		WHERE id_trello_card=$1
		ORDER BY numero_conteudo ASC, numero_refacao ASC
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("list rework records: %w", err)
	}
	defer rows.Close()

	items := make([]ReworkRecord, 0)
	for rows.Next() {
		var item ReworkRecord
		if err := rows.Scan(
			&item.CardID,
			&item.Titulo,
			&item.ContentItem,
			&item.ReworkIndex,
			&item.Tipo,
			&item.Motivo,
			&item.TimeSolicitou,
			&item.ClienteSolicitou,
			&item.TimeResponsavel,
			&item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan rework record: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rework records: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListRework(ctx context.Context) ([]ReworkRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id_trello_card, titulo, numero_conteudo, numero_refacao,
			tipo_refacao, motivo_refacao, time_solicitou_refacao,
			cliente_solicitou_refacao, time_responsavel, updated_at
		FROM cards_refacao
		ORDER BY id_trello_card ASC, numero_conteudo ASC, numero_refacao ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list all rework records: %w", err)
	}
	defer rows.Close()

	items := make([]ReworkRecord, 0)
	for rows.Next() {
		var item ReworkRecord
		if err := rows.Scan(
			&item.CardID,
			&item.Titulo,
			&item.ContentItem,
			&item.ReworkIndex,
			&item.Tipo,
			&item.Motivo,
			&item.TimeSolicitou,
			&item.ClienteSolicitou,
			&item.TimeResponsavel,
			&item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan rework record: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate all rework records: %w", err)
	}
	return items, nil
}

// UpsertRework writes rows that are expected to exist already, in a single
// statement keyed on the composite primary key. Upsert rather than plain
// update: a concurrent session may have inserted the same key between the
// caller's load and this save.
func (s *PostgresStore) UpsertRework(ctx context.Context, records []ReworkRecord) error {
	if len(records) == 0 {
		return nil
	}
	query := `
		INSERT INTO cards_refacao (id_trello_card, titulo, numero_conteudo, numero_refacao,
			tipo_refacao, motivo_refacao, time_solicitou_refacao, cliente_solicitou_refacao, time_responsavel)
		VALUES ` + reworkValuesClause(len(records)) + `
		ON CONFLICT (id_trello_card, numero_conteudo, numero_refacao) DO UPDATE SET
			titulo=EXCLUDED.titulo,
			tipo_refacao=EXCLUDED.tipo_refacao,
			motivo_refacao=EXCLUDED.motivo_refacao,
			time_solicitou_refacao=EXCLUDED.time_solicitou_refacao,
			cliente_solicitou_refacao=EXCLUDED.cliente_solicitou_refacao,
			time_responsavel=EXCLUDED.time_responsavel,
			updated_at=NOW()
	`
	if _, err := s.db.ExecContext(ctx, query, reworkValuesArgs(records)...); err != nil {
		return fmt.Errorf("upsert rework records: %w", err)
	}
	return nil
}

// InsertRework writes rows believed to be new. The batch succeeds or fails
// atomically; a unique-constraint violation comes back as ErrConflict.
func (s *PostgresStore) InsertRework(ctx context.Context, records []ReworkRecord) error {
	if len(records) == 0 {
		return nil
	}
	query := `
		INSERT INTO cards_refacao (id_trello_card, titulo, numero_conteudo, numero_refacao,
			tipo_refacao, motivo_refacao, time_solicitou_refacao, cliente_solicitou_refacao, time_responsavel)
		VALUES ` + reworkValuesClause(len(records))
	if _, err := s.db.ExecContext(ctx, query, reworkValuesArgs(records)...); err != nil {
		return classifyConflict(err, "insert rework records")
	}
	return nil
}

// DeleteRework removes the row exactly matching the composite key. Deleting
// a key with no row is not an error.
func (s *PostgresStore) DeleteRework(ctx context.Context, key ReworkKey) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM cards_refacao
		WHERE id_trello_card=$1 AND numero_conteudo=$2 AND numero_refacao=$3
	`, key.CardID, key.ContentItem, key.ReworkIndex)
	if err != nil {
		return fmt.Errorf("delete rework record: %w", err)
	}
	return nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const reworkColumnCount = 9

func reworkValuesClause(rows int) string {
	var b strings.Builder
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := 0; j < reworkColumnCount; j++ {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", i*reworkColumnCount+j+1)
		}
		b.WriteString(")")
	}
	return b.String()
}

func reworkValuesArgs(records []ReworkRecord) []any {
	args := make([]any, 0, len(records)*reworkColumnCount)
	for _, r := range records {
		args = append(args,
			r.CardID, r.Titulo, r.ContentItem, r.ReworkIndex,
			r.Tipo, r.Motivo, r.TimeSolicitou, r.ClienteSolicitou, r.TimeResponsavel,
		)
	}
	return args
}
