package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/CMSgov/denial-review-app/denials/models"
	"github.com/CMSgov/denial-review-app/log"
	"github.com/sirupsen/logrus"
)

// record mirrors the backend denial as observed at the call boundary. Dates stay strings
// so a malformed one only costs that field.
type record struct {
	ID               string   `mapstructure:"id"`
	ServiceDate      string   `mapstructure:"serviceDate"`
	FacilityLocation string   `mapstructure:"facilityLocation"`
	PatientName      string   `mapstructure:"patientName"`
	PatientID        string   `mapstructure:"patientId"`
	ClaimNumber      string   `mapstructure:"claimNumber"`
	InsurancePayer   string   `mapstructure:"insurancePayer"`
	DenialReason     string   `mapstructure:"denialReason"`
	ClaimAmount      *float64 `mapstructure:"claimAmount"`
	Status           string   `mapstructure:"status"`
	CreatedAt        string   `mapstructure:"createdAt"`
	UpdatedAt        string   `mapstructure:"updatedAt"`
	RCAStatus        string   `mapstructure:"rcaStatus"`

	Summary        string `mapstructure:"summary"`
	Notes          string `mapstructure:"notes"`
	AppealLetter   string `mapstructure:"appealLetter"`
	AppealDeadline string `mapstructure:"appealDeadline"`
	ClaimType      string `mapstructure:"claimType"`
	ProviderName   string `mapstructure:"providerName"`
	ProviderNPI    string `mapstructure:"providerNpi"`
	DiagnosisCode  string `mapstructure:"diagnosisCode"`
	ActionTaken    string `mapstructure:"actionTaken"`
	ResolutionDate string `mapstructure:"resolutionDate"`

	ProcedureCode           string   `mapstructure:"procedureCode"`
	PlaceOfService          string   `mapstructure:"placeOfService"`
	PayerClaimControlNumber string   `mapstructure:"payerClaimControlNumber"`
	ClaimStatusCode         string   `mapstructure:"claimStatusCode"`
	AdjustmentGroupCode     string   `mapstructure:"adjustmentGroupCode"`
	AdjustmentReasonCode    string   `mapstructure:"adjustmentReasonCode"`
	RemarkCode              string   `mapstructure:"remarkCode"`
	PaidAmount              *float64 `mapstructure:"paidAmount"`
	PaymentDate             string   `mapstructure:"paymentDate"`

	RCAResult    map[string]interface{}   `mapstructure:"rcaResult"`
	AppealResult map[string]interface{}   `mapstructure:"appealResult"`
	Documents    []map[string]interface{} `mapstructure:"documents"`
}

// aliases lists alternate backend names for a canonical field. The canonical key wins when
// both are present.
var aliases = map[string][]string{
	"id":               {"denialId", "denialID"},
	"serviceDate":      {"dateOfService", "date"},
	"facilityLocation": {"location", "facility"},
	"patientName":      {"patient"},
	"insurancePayer":   {"payer", "insuranceCompany", "insurance"},
	"denialReason":     {"reason"},
	"claimAmount":      {"amount", "billedAmount"},
	"diagnosisCode":    {"diagnosis"},
	"providerNpi":      {"npi"},
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
}

func decodeRecord(raw map[string]interface{}) record {
	var r record
	decode("denial", foldAliases(raw), &r)
	return r
}

func foldAliases(raw map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	for canonical, alts := range aliases {
		if v, ok := out[canonical]; ok && v != nil {
			continue
		}
		for _, alt := range alts {
			if v, ok := out[alt]; ok && v != nil {
				out[canonical] = v
				delete(out, alt)
				break
			}
		}
	}
	return out
}

func (r record) form837() *models.Form837Data {
	f := models.Form837Data{
		BillingProviderName: r.ProviderName,
		BillingProviderNPI:  r.ProviderNPI,
		SubscriberName:      r.PatientName,
		SubscriberID:        r.PatientID,
		ClaimNumber:         r.ClaimNumber,
		ServiceDate:         r.ServiceDate,
		DiagnosisCode:       r.DiagnosisCode,
		ProcedureCode:       r.ProcedureCode,
		PlaceOfService:      r.PlaceOfService,
		TotalCharge:         r.ClaimAmount,
	}
	if f == (models.Form837Data{}) {
		return nil
	}
	return &f
}

func (r record) form835() *models.Form835Data {
	f := models.Form835Data{
		PayerName:            r.InsurancePayer,
		PayerClaimControl:    r.PayerClaimControlNumber,
		ClaimStatusCode:      r.ClaimStatusCode,
		AdjustmentGroupCode:  r.AdjustmentGroupCode,
		AdjustmentReasonCode: r.AdjustmentReasonCode,
		RemarkCode:           r.RemarkCode,
		BilledAmount:         r.ClaimAmount,
		PaidAmount:           r.PaidAmount,
		PaymentDate:          r.PaymentDate,
	}
	if f == (models.Form835Data{}) {
		return nil
	}
	return &f
}

// parseTime returns the parsed value, or the current time when raw is empty or malformed.
func parseTime(field, raw string) time.Time {
	if t := parseOptionalTime(field, raw); t != nil {
		return *t
	}
	return now()
}

func parseOptionalTime(field, raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	log.API.WithFields(logrus.Fields{"field": field, "value": raw}).
		Warn("Unparseable backend date")
	return nil
}

func toString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}
