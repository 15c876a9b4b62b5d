package model

import "encoding/json"

// StageStatus represents the outcome of a single pipeline stage.
type StageStatus string

const (
	StageStatusComplete StageStatus = "complete"
	StageStatusFailed   StageStatus = "failed"
	StageStatusSkipped  StageStatus = "skipped"
)

// Stage names, in pipeline order.
const (
	StageResolve       = "resolve"
	StageReverseLookup = "reverse_lookup"
	StageDiscovery     = "phone_discovery"
	StagePhoneIntel    = "phone_intel"
	StageGatekeep      = "gatekeep"
	StageAge           = "age_enrichment"
	StageDNC           = "dnc"
)

// StageOutcome records what happened in one stage for one lead.
type StageOutcome struct {
	Name   string      `json:"name"`
	Status StageStatus `json:"status"`
	Reason string      `json:"reason,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// GateReason explains a gatekeep decision.
type GateReason string

const (
	GateReasonOK          GateReason = "ok"
	GateReasonNoPhone     GateReason = "no_phone"
	GateReasonVOIPLine    GateReason = "voip_line"
	GateReasonVOIPCarrier GateReason = "voip_carrier"
)

// GateDecision is the derived cost-control decision for a phone number.
type GateDecision struct {
	Passed bool       `json:"passed"`
	Reason GateReason `json:"reason"`
}

// DNCStatus is the Do-Not-Call outcome for a phone number.
type DNCStatus struct {
	IsDoNotCall bool   `json:"isDoNotCall"`
	CanContact  bool   `json:"canContact"`
	Reason      string `json:"reason,omitempty"`
}

// EnrichmentResult is the per-lead output of the pipeline. A non-empty Error
// does not imply the other fields are empty: partial enrichment is kept.
type EnrichmentResult struct {
	Name        string `json:"name"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	City        string `json:"city"`
	State       string `json:"state"`
	ZipCode     string `json:"zipCode"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	LineType    string `json:"lineType"`
	CarrierName string `json:"carrierName"`
	Age         string `json:"age"`
	DOB         string `json:"dob"`
	LinkedInURL string `json:"linkedinUrl,omitempty"`
	Title       string `json:"title,omitempty"`
	Company     string `json:"company,omitempty"`

	Gatekeep *GateDecision `json:"gatekeep,omitempty"`
	DNC      *DNCStatus    `json:"dnc,omitempty"`

	SkipTracingData  json.RawMessage `json:"skipTracingData,omitempty"`
	ReverseData      json.RawMessage `json:"reverseLookupData,omitempty"`
	TelnyxLookupData json.RawMessage `json:"telnyxLookupData,omitempty"`
	AgeLookupData    json.RawMessage `json:"ageLookupData,omitempty"`

	Stages  []StageOutcome `json:"stages"`
	CostUSD float64        `json:"costUsd"`
	Error   string         `json:"error,omitempty"`
}

// Stage returns the outcome recorded for the named stage, if any.
func (r *EnrichmentResult) Stage(name string) (StageOutcome, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageOutcome{}, false
}

// RecordError stores msg as the lead's error unless an earlier stage already
// failed. The earliest failure is kept.
func (r *EnrichmentResult) RecordError(msg string) {
	if r.Error == "" {
		r.Error = msg
	}
}
