package enrich

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enricher/internal/cost"
	"github.com/sells-group/lead-enricher/internal/geo"
	"github.com/sells-group/lead-enricher/internal/model"
	"github.com/sells-group/lead-enricher/internal/resolve"
	"github.com/sells-group/lead-enricher/pkg/skiptrace"
)

// discoverPhone searches the skip-trace provider by name. It makes no call
// unless both first and last name are known. The returned person is nil on
// failure or when nothing matched.
func (p *Pipeline) discoverPhone(ctx context.Context, r *model.EnrichmentResult, id resolve.Identity) (*skiptrace.Person, model.StageOutcome) {
	if !id.HasName() {
		return nil, skipped("missing first or last name")
	}

	person, err := p.skiptrace.SearchByName(ctx, id.FullName(), id.CityStateZip())
	if err != nil {
		return nil, failed(eris.Wrap(err, "enrich: phone discovery"))
	}
	p.charge(r, cost.NameSearch, person.Cached)

	if !person.Found() {
		r.SkipTracingData = person.Raw
		return nil, complete("no match")
	}
	if NormalizePhone(person.Phone) == "" {
		return person, complete("no phone")
	}
	return person, complete("")
}

// reverseLookup fills a missing name, and a missing location, from a reverse
// phone search.
func (p *Pipeline) reverseLookup(ctx context.Context, r *model.EnrichmentResult, id resolve.Identity) (resolve.Identity, model.StageOutcome) {
	person, err := p.skiptrace.SearchByPhone(ctx, r.Phone)
	if err != nil {
		return id, failed(eris.Wrap(err, "enrich: reverse lookup"))
	}
	p.charge(r, cost.ReverseLookup, person.Cached)
	r.ReverseData = person.Raw

	if !person.Found() || person.Name == "" {
		return id, complete("no match")
	}

	first, last := resolve.SplitName(person.Name)
	if id.FirstName == "" {
		id.FirstName = first
	}
	if id.LastName == "" {
		id.LastName = last
	}
	if id.City == "" && id.State == "" {
		place := geo.ParseLocation(person.Location)
		id.City, id.State = place.City, place.State
		if id.ZipCode == "" {
			id.ZipCode = place.Zip
		}
		if id.ZipCode == "" {
			id.ZipCode = p.zips.Lookup(id.City, id.State)
		}
	}
	if r.Email == "" {
		r.Email = person.Email
	}
	return id, complete("")
}
