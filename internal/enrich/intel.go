package enrich

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enricher/internal/cost"
	"github.com/sells-group/lead-enricher/internal/model"
)

// PhoneIntel is the carrier classification of a phone.
type PhoneIntel struct {
	LineType    string
	CarrierName string
	Raw         json.RawMessage
}

// classifyPhone looks up line type and carrier. On failure both are empty
// and the pipeline continues.
func (p *Pipeline) classifyPhone(ctx context.Context, r *model.EnrichmentResult, phone string) (PhoneIntel, model.StageOutcome) {
	if phone == "" {
		return PhoneIntel{}, skipped("no phone")
	}

	lookup, err := p.telnyx.Lookup(ctx, E164(phone))
	if err != nil {
		return PhoneIntel{}, failed(eris.Wrap(err, "enrich: phone intel"))
	}
	p.charge(r, cost.CarrierLookup, false)

	return PhoneIntel{
		LineType:    NormalizeLineType(lookup.LineTypeOrCarrierType()),
		CarrierName: strings.TrimSpace(lookup.CarrierName),
		Raw:         lookup.Raw,
	}, complete("")
}

var lineTypeAliases = map[string]string{
	"wireless":       "mobile",
	"cellular":       "mobile",
	"cell":           "mobile",
	"mobile":         "mobile",
	"fixed_line":     "landline",
	"fixed":          "landline",
	"landline":       "landline",
	"voip":           "voip",
	"non_fixed_voip": "voip",
	"fixed_voip":     "voip",
	"toll_free":      "toll_free",
	"tollfree":       "toll_free",
}

// NormalizeLineType maps provider line types onto lower-case canonical
// values. Unknown types are lower-cased with spaces and dashes replaced by
// underscores.
func NormalizeLineType(s string) string {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	if v, ok := lineTypeAliases[key]; ok {
		return v
	}
	return key
}
