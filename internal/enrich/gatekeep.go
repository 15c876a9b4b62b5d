package enrich

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lead-enricher/internal/model"
)

// DefaultDenyCarriers are carrier-name fragments of virtual-number providers.
// Matching is a case-insensitive substring test.
var DefaultDenyCarriers = []string{
	"google voice",
	"textnow",
	"burner",
	"hushed",
	"line2",
	"bandwidth",
	"twilio",
}

// Gatekeeper decides whether a phone is worth paying to enrich further.
// It is a pure function of its inputs.
type Gatekeeper struct {
	deny []string
}

// NewGatekeeper returns a Gatekeeper using the default deny list plus extra
// fragments. Extra fragments never remove default ones.
func NewGatekeeper(extra ...string) *Gatekeeper {
	deny := make([]string, 0, len(DefaultDenyCarriers)+len(extra))
	seen := make(map[string]bool)
	for _, f := range append(append([]string{}, DefaultDenyCarriers...), extra...) {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		deny = append(deny, f)
	}
	return &Gatekeeper{deny: deny}
}

// DenyList returns the effective lower-case deny fragments.
func (g *Gatekeeper) DenyList() []string {
	return append([]string(nil), g.deny...)
}

// Decide applies the rules in order: no phone, VOIP line type, deny-listed
// carrier. A missing line type or carrier never blocks.
func (g *Gatekeeper) Decide(phone, lineType, carrierName string) model.GateDecision {
	if strings.TrimSpace(phone) == "" {
		return model.GateDecision{Reason: model.GateReasonNoPhone}
	}
	if strings.EqualFold(strings.TrimSpace(lineType), "voip") {
		return model.GateDecision{Reason: model.GateReasonVOIPLine}
	}
	carrier := strings.ToLower(carrierName)
	for _, f := range g.deny {
		if strings.Contains(carrier, f) {
			return model.GateDecision{Reason: model.GateReasonVOIPCarrier}
		}
	}
	return model.GateDecision{Passed: true, Reason: model.GateReasonOK}
}

var defaultGatekeeper = NewGatekeeper()

// Gatekeep applies the default rules.
func Gatekeep(phone, lineType, carrierName string) model.GateDecision {
	return defaultGatekeeper.Decide(phone, lineType, carrierName)
}

// ShouldContinue reports whether the default rules let the lead through to
// age enrichment.
func ShouldContinue(phone, lineType, carrierName string) bool {
	return Gatekeep(phone, lineType, carrierName).Passed
}

// GatePolicy is the on-disk form of extra gatekeeping rules.
type GatePolicy struct {
	DenyCarriers []string `yaml:"deny_carriers"`
}

// LoadGatePolicy reads a YAML policy file.
func LoadGatePolicy(path string) (*GatePolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: read gate policy %s", path)
	}
	var p GatePolicy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrapf(err, "enrich: parse gate policy %s", path)
	}
	return &p, nil
}
