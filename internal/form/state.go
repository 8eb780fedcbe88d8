// Package form holds the per-session form state for the rework editor: how
// many slots each content item shows, the user's in-progress field values,
// and the last-loaded snapshot of persisted records. The state is an
// explicit object owned by the session and threaded through every handler;
// nothing here is ambient or global.
package form

import (
	"strconv"

	"refacao/api/internal/store"
)

// MaxContentItem bounds the content-item selector, matching the board's
// fixed deliverable range.
const MaxContentItem = 20

// SlotStatus describes where one slot sits in its lifecycle.
type SlotStatus string

const (
	// SlotUnselected: card and content item chosen, slot beyond loaded data,
	// nothing touched yet.
	SlotUnselected SlotStatus = "unselected"
	// SlotEditing: at least one working field diverges from the snapshot.
	SlotEditing SlotStatus = "editing"
	// SlotPersistedClean: slot matches the store exactly, entered after a
	// successful load or save.
	SlotPersistedClean SlotStatus = "persisted_clean"
	// SlotDeleted: persisted row removed and working values cleared.
	// Terminal until the next reload rebuilds the slot.
	SlotDeleted SlotStatus = "deleted"
)

// State is one session's form state. All maps are keyed so the whole value
// round-trips through JSON for the session store.
type State struct {
	CardID    string `json:"cardId"`
	CardTitle string `json:"cardTitle"`
	// Team is the session's responsible-team selector; slots without a
	// persisted team inherit it at save time.
	Team string `json:"team"`

	// Counts maps content-item number to visible slot count. An item absent
	// from the map is unmaterialized and defaults to one slot.
	Counts map[int]int `json:"counts"`
	// Working maps slot key -> field -> in-progress value. Last write wins.
	Working map[string]map[string]string `json:"working"`
	// Snapshot is the last-loaded persisted view, keyed by slot.
	Snapshot map[string]store.ReworkRecord `json:"snapshot"`
	// Deleted marks slots removed since the last reload.
	Deleted map[string]bool `json:"deleted"`
}

// SlotView is the derived display value of one slot: per field, the working
// value if present, else the persisted value, else empty.
type SlotView struct {
	ContentItem      int        `json:"contentItem"`
	ReworkIndex      int        `json:"reworkIndex"`
	Tipo             string     `json:"tipo"`
	Motivo           string     `json:"motivo"`
	TimeSolicitou    string     `json:"timeSolicitou"`
	ClienteSolicitou string     `json:"clienteSolicitou"`
	TimeResponsavel  string     `json:"timeResponsavel"`
	Status           SlotStatus `json:"status"`
	ExistsInStore    bool       `json:"existsInStore"`
}

func New(team string) *State {
	return &State{
		Team:     team,
		Counts:   make(map[int]int),
		Working:  make(map[string]map[string]string),
		Snapshot: make(map[string]store.ReworkRecord),
		Deleted:  make(map[string]bool),
	}
}

// EnsureMaps re-establishes map fields after a JSON round trip.
func (s *State) EnsureMaps() {
	if s.Counts == nil {
		s.Counts = make(map[int]int)
	}
	if s.Working == nil {
		s.Working = make(map[string]map[string]string)
	}
	if s.Snapshot == nil {
		s.Snapshot = make(map[string]store.ReworkRecord)
	}
	if s.Deleted == nil {
		s.Deleted = make(map[string]bool)
	}
}

func slotKey(item, rework int) string {
	return strconv.Itoa(item) + "-" + strconv.Itoa(rework)
}

// SetCard tracks the selected card. Switching cards clears slot counts,
// working values and the loaded snapshot before the caller reloads.
func (s *State) SetCard(cardID, titulo string) {
	if s.CardID != cardID {
		s.Counts = make(map[int]int)
		s.Working = make(map[string]map[string]string)
		s.Snapshot = make(map[string]store.ReworkRecord)
		s.Deleted = make(map[string]bool)
	}
	s.CardID = cardID
	s.CardTitle = titulo
}

// ClearCard drops the selection entirely, used when a title lookup misses.
func (s *State) ClearCard() {
	s.CardID = ""
	s.CardTitle = ""
	s.Counts = make(map[int]int)
	s.Working = make(map[string]map[string]string)
	s.Snapshot = make(map[string]store.ReworkRecord)
	s.Deleted = make(map[string]bool)
}

// LoadSnapshot replaces the persisted view and re-derives slot counts from
// the maximum rework index observed per content item. The max is used rather
// than the row count, defensively, in case of index gaps. Working values
// survive a reload; deletion marks do not.
func (s *State) LoadSnapshot(records []store.ReworkRecord) {
	s.Snapshot = make(map[string]store.ReworkRecord, len(records))
	s.Counts = make(map[int]int)
	s.Deleted = make(map[string]bool)
	for _, r := range records {
		s.Snapshot[slotKey(r.ContentItem, r.ReworkIndex)] = r
		if r.ReworkIndex > s.Counts[r.ContentItem] {
			s.Counts[r.ContentItem] = r.ReworkIndex
		}
	}
}

// SlotCount reports the visible slots for a content item, minimum one.
func (s *State) SlotCount(item int) int {
	if c := s.Counts[item]; c > 1 {
		return c
	}
	return 1
}

// AddSlot shows one more slot for the content item. Nothing is persisted
// until save.
func (s *State) AddSlot(item int) int {
	s.Counts[item] = s.SlotCount(item) + 1
	return s.Counts[item]
}

// Touch materializes a content item the user interacted with.
func (s *State) Touch(item int) {
	if s.Counts[item] < 1 {
		s.Counts[item] = 1
	}
}

// RemoveSlotLocal performs the local half of slot removal: decrement the
// count unless it is already at the one-slot floor, clear the slot's working
// values, drop it from the snapshot view and mark it deleted. The caller is
// expected to reload afterwards; the reload result is authoritative and may
// re-derive a different count when higher indices still exist.
func (s *State) RemoveSlotLocal(item, rework int) {
	if s.Counts[item] > 1 {
		s.Counts[item]--
	} else {
		s.Counts[item] = 1
	}
	key := slotKey(item, rework)
	delete(s.Working, key)
	delete(s.Snapshot, key)
	s.Deleted[key] = true
}

// HasPersisted reports whether the slot exists in the loaded snapshot.
func (s *State) HasPersisted(item, rework int) bool {
	_, ok := s.Snapshot[slotKey(item, rework)]
	return ok
}

// SetField overwrites one working value, last write wins. Values outside the
// static option set are admitted: option sets are open wherever the store
// may hold free-form data. Editing revives a deleted slot.
func (s *State) SetField(item, rework int, field, value string) {
	s.Touch(item)
	key := slotKey(item, rework)
	if s.Working[key] == nil {
		s.Working[key] = make(map[string]string)
	}
	s.Working[key][field] = value
	delete(s.Deleted, key)
}

// Display derives the slot's visible values: per field independently, the
// working value wins over the persisted one, which wins over empty. A
// partially-edited slot shows a mix.
func (s *State) Display(item, rework int) SlotView {
	key := slotKey(item, rework)
	working := s.Working[key]
	persisted, exists := s.Snapshot[key]

	view := SlotView{
		ContentItem:   item,
		ReworkIndex:   rework,
		Status:        s.Status(item, rework),
		ExistsInStore: exists,
	}
	view.Tipo = pick(working[FieldTipo], persisted.Tipo)
	view.Motivo = pick(working[FieldMotivo], persisted.Motivo)
	view.TimeSolicitou = pick(working[FieldTime], persisted.TimeSolicitou)
	view.ClienteSolicitou = pick(working[FieldCliente], persisted.ClienteSolicitou)
	view.TimeResponsavel = pick(persisted.TimeResponsavel, s.Team)
	return view
}

func pick(first, second string) string {
	if first != "" {
		return first
	}
	return second
}

// Status places the slot in its lifecycle state.
func (s *State) Status(item, rework int) SlotStatus {
	key := slotKey(item, rework)
	if s.Deleted[key] {
		return SlotDeleted
	}
	if len(s.Working[key]) > 0 {
		return SlotEditing
	}
	if _, ok := s.Snapshot[key]; ok {
		return SlotPersistedClean
	}
	return SlotUnselected
}

// FieldOptions returns the open option set for a field: the static list
// extended with every value the snapshot already holds for that field.
func (s *State) FieldOptions(field string) []string {
	options := OptionsFor(field)
	if options == nil {
		return nil
	}
	persisted := make([]string, 0, len(s.Snapshot))
	for _, r := range s.Snapshot {
		switch field {
		case FieldTipo:
			persisted = append(persisted, r.Tipo)
		case FieldMotivo:
			persisted = append(persisted, r.Motivo)
		case FieldTime:
			persisted = append(persisted, r.TimeSolicitou)
		case FieldCliente:
			persisted = append(persisted, r.ClienteSolicitou)
		}
	}
	return WithPersisted(options, persisted...)
}

// CollectRows assembles the working set to save: every slot that is either
// persisted or carries working values. Slots merely displayed and never
// touched produce nothing; deleted slots produce nothing until a reload
// rebuilds them. The non-applicable requester field is blanked per the
// classification.
func (s *State) CollectRows() []store.ReworkRecord {
	rows := make([]store.ReworkRecord, 0)
	for item := 1; item <= MaxContentItem; item++ {
		if _, materialized := s.Counts[item]; !materialized {
			continue
		}
		for rework := 1; rework <= s.SlotCount(item); rework++ {
			key := slotKey(item, rework)
			if s.Deleted[key] {
				continue
			}
			_, persisted := s.Snapshot[key]
			if !persisted && len(s.Working[key]) == 0 {
				continue
			}
			view := s.Display(item, rework)
			record := store.ReworkRecord{
				CardID:          s.CardID,
				Titulo:          s.CardTitle,
				ContentItem:     item,
				ReworkIndex:     rework,
				Tipo:            view.Tipo,
				Motivo:          view.Motivo,
				TimeResponsavel: view.TimeResponsavel,
			}
			switch view.Tipo {
			case TipoInterna:
				record.TimeSolicitou = view.TimeSolicitou
			case TipoExterna:
				record.ClienteSolicitou = view.ClienteSolicitou
			}
			rows = append(rows, record)
		}
	}
	return rows
}

// Partition splits the working set into rows whose composite key already
// exists in the snapshot (toUpdate) and the rest (toInsert). Total and
// non-overlapping; recomputed from scratch on every call since slots come
// and go between loads.
func (s *State) Partition() (toUpdate, toInsert []store.ReworkRecord) {
	toUpdate = make([]store.ReworkRecord, 0)
	toInsert = make([]store.ReworkRecord, 0)
	for _, row := range s.CollectRows() {
		if _, ok := s.Snapshot[slotKey(row.ContentItem, row.ReworkIndex)]; ok {
			toUpdate = append(toUpdate, row)
		} else {
			toInsert = append(toInsert, row)
		}
	}
	return toUpdate, toInsert
}

// ClearWorking drops all in-progress edits and deletion marks, used after a
// successful save when the snapshot becomes the source of truth again.
func (s *State) ClearWorking() {
	s.Working = make(map[string]map[string]string)
	s.Deleted = make(map[string]bool)
}
