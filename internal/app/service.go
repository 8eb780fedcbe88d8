package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"refacao/api/internal/config"
	"refacao/api/internal/export"
	"refacao/api/internal/form"
	"refacao/api/internal/search"
	"refacao/api/internal/session"
	"refacao/api/internal/store"
	"refacao/api/internal/util"
)

type dataStore interface {
	GetCardByTitle(ctx context.Context, titulo string) (store.Card, error)
	ListCards(ctx context.Context) ([]store.Card, error)
	ListReworkByCard(ctx context.Context, cardID string) ([]store.ReworkRecord, error)
	ListRework(ctx context.Context) ([]store.ReworkRecord, error)
	UpsertRework(ctx context.Context, records []store.ReworkRecord) error
	InsertRework(ctx context.Context, records []store.ReworkRecord) error
	DeleteRework(ctx context.Context, key store.ReworkKey) error
	Ping(ctx context.Context) error
}

type cardSearch interface {
	SearchCards(ctx context.Context, q string, limit int) []store.Card
	ReindexAll(cards []store.Card)
}

// reportArchiver pushes a finished report to object storage.
type reportArchiver interface {
	Archive(ctx context.Context, objectName string, data []byte, contentType string) error
}

// Service owns the rework synchronization logic: loading a card's persisted
// records into session form state, partitioning pending rows into updates
// and inserts, and flushing them back with conflict recovery.
type Service struct {
	cfg      config.Config
	store    dataStore
	sessions session.Store
	search   cardSearch
	archiver reportArchiver
}

func New(cfg config.Config, dataStore dataStore, sessions session.Store, searchService *search.Service) *Service {
	var cs cardSearch
	if searchService != nil {
		cs = searchService
	}
	return &Service{cfg: cfg, store: dataStore, sessions: sessions, search: cs}
}

// WithArchiver enables report archival to object storage.
func (s *Service) WithArchiver(archiver *export.MinioArchiver) *Service {
	if archiver != nil {
		s.archiver = archiver
	}
	return s
}

// Bootstrap pushes the card catalog into the search index. Failures are
// logged, not fatal: the Postgres fallback still serves lookups.
func (s *Service) Bootstrap(ctx context.Context) error {
	if s.search == nil {
		return nil
	}
	cards, err := s.store.ListCards(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap card index: %w", err)
	}
	s.search.ReindexAll(cards)
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) SessionPing(ctx context.Context) error {
	return s.sessions.Ping(ctx)
}

// NewSession creates a fresh form-state session bound to a responsible team.
func (s *Service) NewSession(ctx context.Context, team string) (map[string]any, error) {
	if team == "" {
		team = form.TeamOptions[0]
	}
	if !contains(form.TeamOptions, team) {
		return nil, domainError(http.StatusUnprocessableEntity, "INVALID_TEAM", "Unknown responsible team", map[string]any{"options": form.TeamOptions})
	}

	sessionID := util.NewID("sess")
	state := form.New(team)
	if err := s.sessions.Save(ctx, sessionID, state); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return map[string]any{
		"sessionId": sessionID,
		"team":      team,
	}, nil
}

// SearchCards serves the title typeahead.
func (s *Service) SearchCards(ctx context.Context, q string, limit int) map[string]any {
	cards := []store.Card{}
	if s.search != nil {
		cards = s.search.SearchCards(ctx, q, limit)
	}
	titles := make([]map[string]any, 0, len(cards))
	for _, card := range cards {
		titles = append(titles, map[string]any{"id": card.TrelloCardID, "titulo": card.Titulo})
	}
	return map[string]any{"cards": titles, "query": q}
}

// SelectCard resolves a human-entered title and loads the card's rework
// records into the session. A miss clears the selection and reports it; a
// switch to a different card resets all slot state before loading.
func (s *Service) SelectCard(ctx context.Context, sessionID, title string) (map[string]any, error) {
	state, err := s.loadState(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	card, err := s.store.GetCardByTitle(ctx, title)
	if errors.Is(err, sql.ErrNoRows) {
		state.ClearCard()
		if saveErr := s.sessions.Save(ctx, sessionID, state); saveErr != nil {
			return nil, fmt.Errorf("save session: %w", saveErr)
		}
		return nil, domainError(http.StatusNotFound, "CARD_NOT_FOUND", "Card not found", map[string]any{"titulo": title})
	}
	if err != nil {
		return nil, storeError("look up card", err)
	}

	records, err := s.store.ListReworkByCard(ctx, card.TrelloCardID)
	if err != nil {
		return nil, storeError("load rework records", err)
	}

	state.SetCard(card.TrelloCardID, card.Titulo)
	state.LoadSnapshot(records)
	if err := s.sessions.Save(ctx, sessionID, state); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	return map[string]any{
		"cardId":       card.TrelloCardID,
		"titulo":       card.Titulo,
		"recordsFound": len(records),
		"counts":       state.Counts,
	}, nil
}

// FormView renders the derived state of one content item: slot count, the
// per-slot display values, and the open option sets.
func (s *Service) FormView(ctx context.Context, sessionID string, item int) (map[string]any, error) {
	state, err := s.loadStateWithCard(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := validateItem(item); err != nil {
		return nil, err
	}

	count := state.SlotCount(item)
	slots := make([]form.SlotView, 0, count)
	for rework := 1; rework <= count; rework++ {
		slots = append(slots, state.Display(item, rework))
	}

	return map[string]any{
		"cardId":      state.CardID,
		"titulo":      state.CardTitle,
		"contentItem": item,
		"slotCount":   count,
		"slots":       slots,
		"options": map[string]any{
			form.FieldTipo:    state.FieldOptions(form.FieldTipo),
			form.FieldMotivo:  state.FieldOptions(form.FieldMotivo),
			form.FieldTime:    state.FieldOptions(form.FieldTime),
			form.FieldCliente: state.FieldOptions(form.FieldCliente),
		},
	}, nil
}

// AddSlot shows one more rework slot for the content item.
func (s *Service) AddSlot(ctx context.Context, sessionID string, item int) (map[string]any, error) {
	state, err := s.loadStateWithCard(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := validateItem(item); err != nil {
		return nil, err
	}

	count := state.AddSlot(item)
	if err := s.sessions.Save(ctx, sessionID, state); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return map[string]any{"contentItem": item, "slotCount": count}, nil
}

// SetField records one in-progress field value, last write wins.
func (s *Service) SetField(ctx context.Context, sessionID string, item, rework int, field, value string) (map[string]any, error) {
	state, err := s.loadStateWithCard(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := validateItem(item); err != nil {
		return nil, err
	}
	if rework < 1 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "reworkIndex must be at least 1", nil)
	}
	if form.OptionsFor(field) == nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown field", map[string]any{"field": field})
	}

	state.SetField(item, rework, field, value)
	if err := s.sessions.Save(ctx, sessionID, state); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return map[string]any{"slot": state.Display(item, rework)}, nil
}

// RemoveSlot deletes a slot: the persisted row first when one exists, then
// the local cleanup, then a reload whose derived counts are authoritative.
// A store delete failure is reported but never blocks the local cleanup.
func (s *Service) RemoveSlot(ctx context.Context, sessionID string, item, rework int) (map[string]any, error) {
	state, err := s.loadStateWithCard(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := validateItem(item); err != nil {
		return nil, err
	}

	existsInStore := state.HasPersisted(item, rework)
	var deleteErr error
	if existsInStore {
		key := store.ReworkKey{CardID: state.CardID, ContentItem: item, ReworkIndex: rework}
		if err := s.store.DeleteRework(ctx, key); err != nil {
			deleteErr = err
			log.Printf("remove slot: delete %s/%d/%d failed: %v", key.CardID, item, rework, err)
		}
	}

	state.RemoveSlotLocal(item, rework)

	// Reload; the store's view of counts wins over the local decrement.
	if records, err := s.store.ListReworkByCard(ctx, state.CardID); err == nil {
		state.LoadSnapshot(records)
	} else {
		log.Printf("remove slot: reload failed, keeping local counts: %v", err)
	}

	if err := s.sessions.Save(ctx, sessionID, state); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	payload := map[string]any{
		"contentItem":    item,
		"reworkIndex":    rework,
		"slotCount":      state.SlotCount(item),
		"existedInStore": existsInStore,
	}
	if deleteErr != nil {
		payload["deleteError"] = deleteErr.Error()
	}
	return payload, nil
}

// SaveAll partitions the pending working set against the latest snapshot and
// flushes it: one batched upsert for rows that already exist, one batched
// insert for new rows. A uniqueness conflict on the insert path means a
// concurrent session won the race; recovery is reload-and-warn, never a
// blind retry.
func (s *Service) SaveAll(ctx context.Context, sessionID string) (map[string]any, error) {
	state, err := s.loadStateWithCard(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	toUpdate, toInsert := state.Partition()
	if len(toUpdate) == 0 && len(toInsert) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "NOTHING_TO_SAVE", "No pending rework entries", nil)
	}

	if len(toUpdate) > 0 {
		if err := s.store.UpsertRework(ctx, toUpdate); err != nil {
			return nil, storeError("update rework records", err)
		}
	}

	if len(toInsert) > 0 {
		if err := s.store.InsertRework(ctx, toInsert); err != nil {
			if errors.Is(err, store.ErrConflict) {
				s.reloadAfterConflict(ctx, sessionID, state)
				return nil, domainError(http.StatusConflict, "CONFLICT_RELOADED",
					"Someone saved a rework for this card at the same time. The form was refreshed; verify your entries and save again.",
					map[string]any{"counts": state.Counts})
			}
			return nil, storeError("insert rework records", err)
		}
	}

	// Re-synchronize: the persisted snapshot is the source of truth now.
	records, err := s.store.ListReworkByCard(ctx, state.CardID)
	if err != nil {
		return nil, storeError("reload after save", err)
	}
	state.LoadSnapshot(records)
	state.ClearWorking()
	if err := s.sessions.Save(ctx, sessionID, state); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	return map[string]any{
		"updated":  len(toUpdate),
		"inserted": len(toInsert),
		"counts":   state.Counts,
	}, nil
}

func (s *Service) reloadAfterConflict(ctx context.Context, sessionID string, state *form.State) {
	records, err := s.store.ListReworkByCard(ctx, state.CardID)
	if err != nil {
		log.Printf("conflict reload failed: %v", err)
		return
	}
	state.LoadSnapshot(records)
	if err := s.sessions.Save(ctx, sessionID, state); err != nil {
		log.Printf("conflict reload: save session: %v", err)
	}
}

// Options returns the static option sets for the editor surface.
func (s *Service) Options() map[string]any {
	return map[string]any{
		"teams":           form.TeamOptions,
		form.FieldTipo:    form.TipoOptions,
		form.FieldMotivo:  form.MotivoOptions,
		form.FieldTime:    form.TimeSolicitouOptions,
		form.FieldCliente: form.ClienteOptions,
	}
}

// ReworkReport builds the CSV rework report, for one card or the whole
// workspace, and archives a copy when object storage is configured.
func (s *Service) ReworkReport(ctx context.Context, cardID string) ([]byte, string, error) {
	var (
		records []store.ReworkRecord
		err     error
	)
	if cardID == "" {
		records, err = s.store.ListRework(ctx)
	} else {
		records, err = s.store.ListReworkByCard(ctx, cardID)
	}
	if err != nil {
		return nil, "", storeError("load report records", err)
	}

	data, err := export.BuildReworkCSV(records)
	if err != nil {
		return nil, "", fmt.Errorf("build report: %w", err)
	}

	name := "rework-report"
	if cardID != "" {
		name = "rework-report-" + cardID
	}
	filename := fmt.Sprintf("%s-%s.csv", name, time.Now().Format("2006-01-02"))

	if s.archiver != nil {
		archiveCtx := context.WithoutCancel(ctx)
		go func() {
			if err := s.archiver.Archive(archiveCtx, filename, data, "text/csv"); err != nil {
				log.Printf("report: archive %s: %v", filename, err)
			}
		}()
	}
	return data, filename, nil
}

func (s *Service) loadState(ctx context.Context, sessionID string) (*form.State, error) {
	state, err := s.sessions.Load(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, domainError(http.StatusNotFound, "SESSION_NOT_FOUND", "Session expired or unknown", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return state, nil
}

func (s *Service) loadStateWithCard(ctx context.Context, sessionID string) (*form.State, error) {
	state, err := s.loadState(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state.CardID == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "NO_CARD_SELECTED", "Select a card first", nil)
	}
	return state, nil
}

func validateItem(item int) error {
	if item < 1 || item > form.MaxContentItem {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR",
			fmt.Sprintf("contentItem must be between 1 and %d", form.MaxContentItem), nil)
	}
	return nil
}

func storeError(op string, err error) *DomainError {
	return domainError(http.StatusBadGateway, "STORE_ERROR", fmt.Sprintf("%s: %v", op, err), nil)
}

func contains(options []string, value string) bool {
	for _, opt := range options {
		if opt == value {
			return true
		}
	}
	return false
}
