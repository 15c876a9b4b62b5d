package enrich

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enricher/internal/cost"
	"github.com/sells-group/lead-enricher/internal/model"
	"github.com/sells-group/lead-enricher/internal/resolve"
	"github.com/sells-group/lead-enricher/pkg/skiptrace"
)

// lookupAge makes exactly one age lookup. Callers gate it.
func (p *Pipeline) lookupAge(ctx context.Context, r *model.EnrichmentResult, id resolve.Identity) (*skiptrace.AgeRecord, model.StageOutcome) {
	if id.FullName() == "" {
		return nil, skipped("no name")
	}

	rec, err := p.skiptrace.LookupAge(ctx, id.FullName(), id.CityStateZip())
	if err != nil {
		return nil, failed(eris.Wrap(err, "enrich: age lookup"))
	}
	p.charge(r, cost.AgeLookup, rec.Cached)

	if rec.Age == "" && rec.DOB == "" {
		return rec, complete("no match")
	}
	return rec, complete("")
}
