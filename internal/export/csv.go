package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"refacao/api/internal/store"
)

var reworkHeader = []string{
	"id_trello_card",
	"titulo",
	"numero_conteudo",
	"numero_refacao",
	"tipo_refacao",
	"motivo_refacao",
	"time_solicitou_refacao",
	"cliente_solicitou_refacao",
	"time_responsavel",
}

// BuildReworkCSV renders rework records as a CSV document with a header row.
func BuildReworkCSV(records []store.ReworkRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(reworkHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, record := range records {
		row := []string{
			record.CardID,
			record.Titulo,
			strconv.Itoa(record.ContentItem),
			strconv.Itoa(record.ReworkIndex),
			record.Tipo,
			record.Motivo,
			record.TimeSolicitou,
			record.ClienteSolicitou,
			record.TimeResponsavel,
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
