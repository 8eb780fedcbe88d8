package search

import (
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"

	"refacao/api/internal/store"
)

const idxCards = "refacao_cards"

// Meili indexes card titles for typeahead lookup.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// cardDoc is the indexed shape of a card.
type cardDoc struct {
	ID     string `json:"id"`
	Titulo string `json:"titulo"`
}

// NewMeili creates a Meilisearch client and configures the cards index.
// The instance starts unhealthy if the initial connection fails; the health
// loop recovers it.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxCards,
		PrimaryKey: "id",
	}); err != nil {
		log.Printf("search: create index %s (may already exist): %v", idxCards, err)
	}
	searchable := []string{"titulo"}
	if _, err := m.client.Index(idxCards).UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: update searchable attrs for %s: %v", idxCards, err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// SearchCards runs a typeahead query over card titles.
func (m *Meili) SearchCards(q string, limit int) ([]store.Card, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}
	if limit <= 0 {
		limit = 20
	}

	resp, err := m.client.Index(idxCards).Search(q, &meili.SearchRequest{
		Limit: int64(limit),
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}

	cards := make([]store.Card, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		cards = append(cards, store.Card{
			TrelloCardID: decodeString(hit, "id"),
			Titulo:       decodeString(hit, "titulo"),
		})
	}
	return cards, nil
}

// IndexCards bulk-indexes card titles.
func (m *Meili) IndexCards(cards []store.Card) error {
	if len(cards) == 0 {
		return nil
	}
	docs := make([]cardDoc, 0, len(cards))
	for _, c := range cards {
		docs = append(docs, cardDoc{ID: c.TrelloCardID, Titulo: c.Titulo})
	}
	if _, err := m.client.Index(idxCards).AddDocuments(docs, nil); err != nil {
		return fmt.Errorf("index cards: %w", err)
	}
	return nil
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}
