package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/sells-group/lead-enricher/pkg/dnc"
	"github.com/sells-group/lead-enricher/pkg/skiptrace"
	"github.com/sells-group/lead-enricher/pkg/telnyx"
)

// Compile-time interface checks.
var (
	_ skiptrace.Client = (*StubSkipTracer)(nil)
	_ telnyx.Client    = (*StubTelnyx)(nil)
	_ dnc.Client       = (*StubDNC)(nil)
)

// --- Skip-trace Stub ---

// StubSkipTracer implements skiptrace.Client with answers derived from the
// query, so repeated runs produce identical results.
type StubSkipTracer struct{}

// SearchByName implements skiptrace.Client.
func (s *StubSkipTracer) SearchByName(_ context.Context, name, cityStateZip string) (*skiptrace.Person, error) {
	h := stubHash(name)
	p := &skiptrace.Person{
		Name:     name,
		Phone:    fmt.Sprintf("512555%04d", h%10000),
		Email:    stubEmail(name),
		Age:      fmt.Sprintf("%d", 25+h%50),
		Location: cityStateZip,
	}
	p.Raw = stubRaw(p)
	return p, nil
}

// SearchByPhone implements skiptrace.Client. The stub knows no owners.
func (s *StubSkipTracer) SearchByPhone(_ context.Context, _ string) (*skiptrace.Person, error) {
	return &skiptrace.Person{Raw: json.RawMessage(`{"PeopleDetails":[]}`)}, nil
}

// LookupAge implements skiptrace.Client.
func (s *StubSkipTracer) LookupAge(_ context.Context, name, _ string) (*skiptrace.AgeRecord, error) {
	h := stubHash(name)
	rec := &skiptrace.AgeRecord{
		Age: fmt.Sprintf("%d", 25+h%50),
		DOB: fmt.Sprintf("%d-%02d-%02d", 2026-25-int(h%50), 1+h%12, 1+h%28),
	}
	rec.Raw = stubRaw(rec)
	return rec, nil
}

// --- Telnyx Stub ---

// StubTelnyx implements telnyx.Client. Every number is a mobile line on
// the configured carrier.
type StubTelnyx struct {
	LineType    string
	CarrierName string
}

// Lookup implements telnyx.Client.
func (s *StubTelnyx) Lookup(_ context.Context, e164 string) (*telnyx.Lookup, error) {
	l := &telnyx.Lookup{
		PhoneNumber: e164,
		LineType:    s.LineType,
		CarrierName: s.CarrierName,
	}
	if l.LineType == "" {
		l.LineType = "mobile"
	}
	if l.CarrierName == "" {
		l.CarrierName = "AT&T Wireless"
	}
	l.Raw = stubRaw(l)
	return l, nil
}

// --- DNC Stub ---

// StubDNC implements dnc.Client. Every number may be contacted.
type StubDNC struct{}

// Check implements dnc.Client.
func (s *StubDNC) Check(_ context.Context, _, _ string) (*dnc.Status, error) {
	return &dnc.Status{ContactStatus: dnc.ContactStatus{CanContact: true}}, nil
}

func stubHash(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(s)))
	return h.Sum32()
}

func stubEmail(name string) string {
	parts := strings.Fields(strings.ToLower(name))
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ".") + "@example.com"
}

func stubRaw(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}
