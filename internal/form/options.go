package form

import "strings"

// Field names address the per-slot working values.
const (
	FieldTipo    = "tipo"
	FieldMotivo  = "motivo"
	FieldTime    = "time"
	FieldCliente = "cliente"
)

const (
	TipoInterna = "Interna"
	TipoExterna = "Externa"
)

// Static option lists for the editor surface. Every set is open: a value
// already persisted in the store is always a valid, selectable member even
// when it is missing from the static list below.
var (
	TeamOptions = []string{"Criação", "Redação"}

	TipoOptions = []string{TipoExterna, TipoInterna}

	MotivoOptions = []string{
		"Briefing incompleto",
		"Execução fora do direcionamento",
		"Erro técnico (para alterações de erro interno, ex: logo errada, cor errada)",
		"Alteração estética (solicitada pelo cliente)",
		"Alteração estética (solicitada pelo time)",
		"Ajuste por atualização de informações",
	}

	TimeSolicitouOptions = []string{"Refação", "Criação", "Automação", "Tech", "Performance", "Comunicação"}

	ClienteOptions = []string{"Hospitalar", "BR Consórcios", "SnowDog", "Arnaldos"}
)

// OptionsFor returns the static list for a field, nil for unknown fields.
func OptionsFor(field string) []string {
	switch field {
	case FieldTipo:
		return TipoOptions
	case FieldMotivo:
		return MotivoOptions
	case FieldTime:
		return TimeSolicitouOptions
	case FieldCliente:
		return ClienteOptions
	default:
		return nil
	}
}

// WithPersisted extends options with any persisted values not already in the
// list, comparing with surrounding whitespace stripped. Blank values are
// never added.
func WithPersisted(options []string, persisted ...string) []string {
	out := make([]string, len(options))
	copy(out, options)
	for _, value := range persisted {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		found := false
		for _, opt := range out {
			if strings.TrimSpace(opt) == trimmed {
				found = true
				break
			}
		}
		if !found {
			out = append(out, trimmed)
		}
	}
	return out
}
