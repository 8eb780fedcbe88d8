package form

import (
	"encoding/json"
	"testing"

	"refacao/api/internal/store"
)

func rec(item, rework int, tipo string) store.ReworkRecord {
	return store.ReworkRecord{
		CardID:          "card-1",
		Titulo:          "Video institucional",
		ContentItem:     item,
		ReworkIndex:     rework,
		Tipo:            tipo,
		Motivo:          "Erro de Informação",
		TimeResponsavel: "Criação",
	}
}

func TestLoadSnapshotDerivesCountsFromMaxReworkIndex(t *testing.T) {
	s := New("Criação")
	s.SetCard("card-1", "Video institucional")
	s.LoadSnapshot([]store.ReworkRecord{
		rec(1, 1, TipoInterna),
		rec(1, 3, TipoInterna),
		rec(2, 1, TipoExterna),
	})

	if got := s.SlotCount(1); got != 3 {
		t.Fatalf("expected item 1 to show 3 slots from max index, got %d", got)
	}
	if got := s.SlotCount(2); got != 1 {
		t.Fatalf("expected item 2 to show 1 slot, got %d", got)
	}
	if got := s.SlotCount(5); got != 1 {
		t.Fatalf("expected unloaded item to default to 1 slot, got %d", got)
	}
}

func TestLoadSnapshotKeepsWorkingValues(t *testing.T) {
	s := New("Criação")
	s.SetCard("card-1", "Video institucional")
	s.SetField(1, 1, FieldMotivo, "Mudança de Escopo")

	s.LoadSnapshot([]store.ReworkRecord{rec(1, 1, TipoInterna)})

	if got := s.Display(1, 1).Motivo; got != "Mudança de Escopo" {
		t.Fatalf("expected working value to survive reload, got %q", got)
	}
}

func TestAddSlotIncrementsByOne(t *testing.T) {
	s := New("Criação")
	s.SetCard("card-1", "Video institucional")

	if got := s.AddSlot(4); got != 2 {
		t.Fatalf("expected first add to show 2 slots, got %d", got)
	}
	if got := s.AddSlot(4); got != 3 {
		t.Fatalf("expected second add to show 3 slots, got %d", got)
	}
}

func TestRemoveSlotLocalFloorsAtOne(t *testing.T) {
	s := New("Criação")
	s.SetCard("card-1", "Video institucional")
	s.SetField(3, 1, FieldTipo, TipoInterna)

	s.RemoveSlotLocal(3, 1)
	if got := s.SlotCount(3); got != 1 {
		t.Fatalf("expected slot count floor of 1, got %d", got)
	}
	if got := s.Status(3, 1); got != SlotDeleted {
		t.Fatalf("expected deleted status, got %s", got)
	}
	if got := s.Display(3, 1).Tipo; got != "" {
		t.Fatalf("expected working values cleared on removal, got %q", got)
	}
}

func TestRemoveSlotLocalDecrementsAboveFloor(t *testing.T) {
	s := New("Criação")
	s.SetCard("card-1", "Video institucional")
	s.AddSlot(3)
	s.AddSlot(3)

	s.RemoveSlotLocal(3, 3)
	if got := s.SlotCount(3); got != 2 {
		t.Fatalf("expected 2 slots after removal, got %d", got)
	}
}

func TestSetFieldRevivesDeletedSlot(t *testing.T) {
	s := New("Criação")
	s.SetCard("card-1", "Video institucional")
	s.RemoveSlotLocal(2, 1)

	s.SetField(2, 1, FieldTipo, TipoExterna)
	if got := s.Status(2, 1); got != SlotEditing {
		t.Fatalf("expected editing status after revival, got %s", got)
	}
}

func TestDisplayPrefersWorkingOverPersistedPerField(t *testing.T) {
	s := New("Redação")
	s.SetCard("card-1", "Video institucional")
	persisted := rec(1, 1, TipoInterna)
	persisted.TimeSolicitou = "Tech"
	s.LoadSnapshot([]store.ReworkRecord{persisted})

	s.SetField(1, 1, FieldMotivo, "Refação Cliente")

	view := s.Display(1, 1)
	if view.Motivo != "Refação Cliente" {
		t.Fatalf("expected working motivo, got %q", view.Motivo)
	}
	if view.Tipo != TipoInterna {
		t.Fatalf("expected persisted tipo for untouched field, got %q", view.Tipo)
	}
	if view.TimeSolicitou != "Tech" {
		t.Fatalf("expected persisted time for untouched field, got %q", view.TimeSolicitou)
	}
	if view.Status != SlotEditing {
		t.Fatalf("expected editing status, got %s", view.Status)
	}
}

func TestDisplayTimeResponsavelDefaultsToSessionTeam(t *testing.T) {
	s := New("Redação")
	s.SetCard("card-1", "Video institucional")

	if got := s.Display(7, 1).TimeResponsavel; got != "Redação" {
		t.Fatalf("expected session team as default responsible team, got %q", got)
	}

	persisted := rec(7, 1, TipoInterna)
	persisted.TimeResponsavel = "Criação"
	s.LoadSnapshot([]store.ReworkRecord{persisted})
	if got := s.Display(7, 1).TimeResponsavel; got != "Criação" {
		t.Fatalf("expected persisted responsible team to win, got %q", got)
	}
}

func TestPartitionIsTotalAndNonOverlapping(t *testing.T) {
	s := New("Criação")
	s.SetCard("card-1", "Video institucional")
	s.LoadSnapshot([]store.ReworkRecord{rec(1, 1, TipoInterna), rec(1, 2, TipoInterna)})

	s.SetField(1, 1, FieldMotivo, "Mudança de Escopo")
	s.AddSlot(1)
	s.SetField(1, 3, FieldTipo, TipoExterna)

	toUpdate, toInsert := s.Partition()
	if len(toUpdate) != 2 {
		t.Fatalf("expected 2 rows to update, got %d", len(toUpdate))
	}
	if len(toInsert) != 1 {
		t.Fatalf("expected 1 row to insert, got %d", len(toInsert))
	}
	seen := make(map[string]bool)
	for _, r := range append(toUpdate, toInsert...) {
		key := slotKey(r.ContentItem, r.ReworkIndex)
		if seen[key] {
			t.Fatalf("slot %s appeared in both partitions", key)
		}
		seen[key] = true
	}
}

func TestPartitionEditExistingRoutesOneUpdate(t *testing.T) {
	s := New("Criação")
	s.SetCard("card-1", "Video institucional")
	s.LoadSnapshot([]store.ReworkRecord{rec(2, 1, TipoInterna)})

	s.SetField(2, 1, FieldMotivo, "Refação Cliente")

	toUpdate, toInsert := s.Partition()
	if len(toUpdate) != 1 || len(toInsert) != 0 {
		t.Fatalf("expected exactly one update and no inserts, got %d/%d", len(toUpdate), len(toInsert))
	}
	if toUpdate[0].Motivo != "Refação Cliente" {
		t.Fatalf("expected edited motivo in update row, got %q", toUpdate[0].Motivo)
	}
}

func TestPartitionNewSlotRoutesOneInsertWithTeamDefault(t *testing.T) {
	s := New("Redação")
	s.SetCard("card-1", "Video institucional")
	s.LoadSnapshot([]store.ReworkRecord{rec(6, 1, TipoInterna)})

	s.AddSlot(6)
	s.SetField(6, 2, FieldTipo, TipoExterna)
	s.SetField(6, 2, FieldMotivo, "Mudança de Escopo")
	s.SetField(6, 2, FieldCliente, "SnowDog")

	toUpdate, toInsert := s.Partition()
	if len(toUpdate) != 1 || len(toInsert) != 1 {
		t.Fatalf("expected one update and one insert, got %d/%d", len(toUpdate), len(toInsert))
	}
	row := toInsert[0]
	if row.ContentItem != 6 || row.ReworkIndex != 2 {
		t.Fatalf("unexpected insert key %d-%d", row.ContentItem, row.ReworkIndex)
	}
	if row.TimeResponsavel != "Redação" {
		t.Fatalf("expected responsible team defaulted from session, got %q", row.TimeResponsavel)
	}
	if row.ClienteSolicitou != "SnowDog" {
		t.Fatalf("expected cliente kept for external rework, got %q", row.ClienteSolicitou)
	}
	if row.TimeSolicitou != "" {
		t.Fatalf("expected internal requester blanked for external rework, got %q", row.TimeSolicitou)
	}
}

func TestCollectRowsSkipsUntouchedAndDeletedSlots(t *testing.T) {
	s := New("Criação")
	s.SetCard("card-1", "Video institucional")
	s.LoadSnapshot([]store.ReworkRecord{rec(1, 1, TipoInterna)})

	// Added but never filled: displayed, not saved.
	s.AddSlot(1)
	s.RemoveSlotLocal(1, 1)

	rows := s.CollectRows()
	if len(rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(rows))
	}
}

func TestCollectRowsGatesRequesterByTipo(t *testing.T) {
	s := New("Criação")
	s.SetCard("card-1", "Video institucional")
	s.SetField(2, 1, FieldTipo, TipoInterna)
	s.SetField(2, 1, FieldTime, "Performance")
	s.SetField(2, 1, FieldCliente, "Hospitalar")

	rows := s.CollectRows()
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	if rows[0].TimeSolicitou != "Performance" {
		t.Fatalf("expected internal requester kept, got %q", rows[0].TimeSolicitou)
	}
	if rows[0].ClienteSolicitou != "" {
		t.Fatalf("expected cliente blanked for internal rework, got %q", rows[0].ClienteSolicitou)
	}
}

func TestSetCardSwitchResetsState(t *testing.T) {
	s := New("Criação")
	s.SetCard("card-1", "Video institucional")
	s.AddSlot(1)
	s.SetField(1, 1, FieldTipo, TipoInterna)

	s.SetCard("card-2", "Outro card")
	if got := s.SlotCount(1); got != 1 {
		t.Fatalf("expected counts cleared on card switch, got %d", got)
	}
	if got := s.Status(1, 1); got != SlotUnselected {
		t.Fatalf("expected unselected status after switch, got %s", got)
	}

	s.SetField(1, 1, FieldTipo, TipoExterna)
	s.SetCard("card-2", "Outro card")
	if got := s.Display(1, 1).Tipo; got != TipoExterna {
		t.Fatalf("expected reselecting same card to keep edits, got %q", got)
	}
}

func TestStateRoundTripsThroughJSON(t *testing.T) {
	s := New("Criação")
	s.SetCard("card-1", "Video institucional")
	s.LoadSnapshot([]store.ReworkRecord{rec(1, 2, TipoInterna)})
	s.SetField(1, 1, FieldMotivo, "Refação Cliente")
	s.RemoveSlotLocal(3, 1)

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}
	var restored State
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	restored.EnsureMaps()

	if got := restored.SlotCount(1); got != 2 {
		t.Fatalf("expected counts to survive round trip, got %d", got)
	}
	if got := restored.Display(1, 1).Motivo; got != "Refação Cliente" {
		t.Fatalf("expected working values to survive round trip, got %q", got)
	}
	if got := restored.Status(3, 1); got != SlotDeleted {
		t.Fatalf("expected deletion marks to survive round trip, got %s", got)
	}
	if !restored.HasPersisted(1, 2) {
		t.Fatalf("expected snapshot to survive round trip")
	}
}
