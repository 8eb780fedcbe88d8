package store

import "time"

// Card mirrors a unit of work from the external task board. This service
// only reads it, to resolve a human-entered title to the stable external id.
type Card struct {
	TrelloCardID string
	Titulo       string
}

// ReworkKey is the composite key of a rework record. The store enforces a
// uniqueness constraint on exactly these three columns; all conflict
// handling hangs off it.
type ReworkKey struct {
	CardID      string `json:"cardId"`
	ContentItem int    `json:"contentItem"`
	ReworkIndex int    `json:"reworkIndex"`
}

// ReworkRecord is one persisted rework event against a content item.
// At most one of TimeSolicitou/ClienteSolicitou is set, determined by Tipo.
type ReworkRecord struct {
	CardID           string `json:"cardId"`
	Titulo           string `json:"titulo"`
	ContentItem      int    `json:"contentItem"`
	ReworkIndex      int    `json:"reworkIndex"`
	Tipo             string `json:"tipo"` // "Interna", "Externa" or blank
	Motivo           string `json:"motivo"`
	TimeSolicitou    string `json:"timeSolicitou"`
	ClienteSolicitou string `json:"clienteSolicitou"`
	TimeResponsavel  string `json:"timeResponsavel"`

	UpdatedAt time.Time `json:"-"`
}

func (r ReworkRecord) Key() ReworkKey {
	return ReworkKey{CardID: r.CardID, ContentItem: r.ContentItem, ReworkIndex: r.ReworkIndex}
}
