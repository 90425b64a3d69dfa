// Package normalize maps the backend's loosely typed denial records onto the fixed models
// the dashboard renders. Every function here is total: missing or malformed backend values
// fall back to documented defaults and are logged, never returned as errors.
package normalize

import (
	"strings"
	"time"

	"github.com/CMSgov/denial-review-app/denials/models"
	"github.com/CMSgov/denial-review-app/log"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

// Field defaults applied when the backend omits a value.
const (
	UnknownLocation = "Unknown Location"
	UnknownPatient  = "Unknown Patient"
	UnknownPayer    = "Unknown Payer"
	UnknownClaim    = "N/A"
	UnknownReason   = "No reason provided"

	// Raw backend status that unlocks the root cause on the detail screen.
	RCACompletedStatus = "RCA Completed"
	DefaultRootCause   = "Root cause analysis completed. Review the detailed analysis for findings and recommendations."
)

var now = time.Now

var statusMap = map[string]models.Status{
	"New":              models.StatusInReview,
	"In Review":        models.StatusInReview,
	"RCA Completed":    models.StatusInReview,
	"Appeal Generated": models.StatusAppealFiled,
	"Appeal Filed":     models.StatusAppealFiled,
	"Denied":           models.StatusDenied,
	"Resolved":         models.StatusResolved,
}

// NormalizeStatus maps a backend status onto the UI enum. The match is exact and
// case-sensitive on the trimmed input. Canonical UI values pass through; anything else
// becomes InReview with a warning.
func NormalizeStatus(raw string) models.Status {
	s := strings.TrimSpace(raw)
	if v, ok := statusMap[s]; ok {
		return v
	}
	if models.Status(s).Valid() {
		return models.Status(s)
	}

	log.API.WithField("backend_status", raw).
		Warn("Unrecognized denial status; defaulting to InReview")
	return models.StatusInReview
}

var backendStatus = map[models.Status]string{
	models.StatusInReview:    "In Review",
	models.StatusAppealFiled: "Appeal Filed",
	models.StatusDenied:      "Denied",
	models.StatusResolved:    "Resolved",
}

// BackendStatus is the backend's name for a UI status, used when writing a status or
// filtering by one. It is the inverse of NormalizeStatus on canonical backend values.
func BackendStatus(s models.Status) (string, bool) {
	v, ok := backendStatus[s]
	return v, ok
}

// NormalizeDenial produces a fully populated Denial from an arbitrary backend record.
func NormalizeDenial(raw map[string]interface{}) models.Denial {
	r := decodeRecord(raw)
	return r.denial()
}

// NormalizeDetail produces a DenialDetail. Optional fields stay empty when the backend
// does not supply them.
func NormalizeDetail(raw map[string]interface{}) models.DenialDetail {
	r := decodeRecord(raw)

	d := models.DenialDetail{
		Denial:         r.denial(),
		Summary:        firstNonEmpty(r.Summary, r.Notes),
		AppealLetter:   r.AppealLetter,
		AppealDeadline: parseOptionalTime("appealDeadline", r.AppealDeadline),
		ClaimType:      r.ClaimType,
		ProviderName:   r.ProviderName,
		ProviderNPI:    r.ProviderNPI,
		Diagnosis:      r.DiagnosisCode,
		ActionTaken:    r.ActionTaken,
		ResolutionDate: parseOptionalTime("resolutionDate", r.ResolutionDate),
		Form837Data:    r.form837(),
		Form835Data:    r.form835(),
		Documents:      r.documents(),
	}

	if len(r.RCAResult) > 0 {
		a := NormalizeAnalysis(r.RCAResult)
		d.RCAResult = &a
	}
	if len(r.AppealResult) > 0 {
		a := NormalizeAppeal(r.AppealResult)
		a.Source = models.SourceCached
		d.AppealResult = &a
	}

	if strings.TrimSpace(r.Status) == RCACompletedStatus {
		if d.RCAResult != nil && d.RCAResult.Analysis != "" {
			d.RootCause = d.RCAResult.Analysis
		} else {
			d.RootCause = DefaultRootCause
		}
	}

	return d
}

// NormalizeList accepts either a bare array of records or an object wrapping one and
// returns the normalized denials. Entries that are not objects are skipped.
func NormalizeList(data interface{}) []models.Denial {
	items := unwrapList(data)
	denials := make([]models.Denial, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			log.API.WithField("index", i).Warn("Skipping denial list entry that is not an object")
			continue
		}
		denials = append(denials, NormalizeDenial(m))
	}
	return denials
}

func unwrapList(data interface{}) []interface{} {
	switch v := data.(type) {
	case []interface{}:
		return v
	case map[string]interface{}:
		for _, key := range []string{"denials", "items", "data", "results"} {
			if items, ok := v[key].([]interface{}); ok {
				return items
			}
		}
	}
	if data != nil {
		log.API.Warnf("Unexpected denial list payload of type %T; treating as empty", data)
	}
	return nil
}

// NormalizeAnalysis decodes the backend's RCA bundle.
func NormalizeAnalysis(raw map[string]interface{}) models.RemoteAnalysis {
	var a models.RemoteAnalysis
	decode("rcaResult", raw, &a)
	if v, ok := raw["completedAt"]; ok {
		a.CompletedAt = parseOptionalTime("rcaResult.completedAt", toString(v))
	}
	return a
}

// NormalizeAppeal decodes an appeal generation response. Slices are always non-nil so a
// new result never inherits anything from a previous one.
func NormalizeAppeal(raw map[string]interface{}) models.AppealResult {
	var a models.AppealResult
	decode("appealResult", raw, &a)
	if a.SupportDocumentLinks == nil {
		a.SupportDocumentLinks = []string{}
	}
	if a.MissingInformation == nil {
		a.MissingInformation = []string{}
	}
	a.GeneratedAt = parseTime("appealResult.generatedAt", toString(raw["generatedAt"]))
	a.Source = models.SourceAPI
	return a
}

func (r record) denial() models.Denial {
	d := models.Denial{
		ID:               r.ID,
		ServiceDate:      parseTime("serviceDate", r.ServiceDate),
		FacilityLocation: defaultString(r.FacilityLocation, UnknownLocation),
		PatientName:      defaultString(r.PatientName, UnknownPatient),
		PatientID:        r.PatientID,
		ClaimNumber:      defaultString(r.ClaimNumber, UnknownClaim),
		InsurancePayer:   defaultString(r.InsurancePayer, UnknownPayer),
		DenialReason:     defaultString(r.DenialReason, UnknownReason),
		Status:           NormalizeStatus(r.Status),
		// The backend does not supply a priority.
		Priority:  models.PriorityMedium,
		CreatedAt: parseTime("createdAt", r.CreatedAt),
		UpdatedAt: parseTime("updatedAt", r.UpdatedAt),
	}
	if r.ClaimAmount != nil {
		d.ClaimAmount = *r.ClaimAmount
	}
	if s := normalizeRCAStatus(r.RCAStatus); s != nil {
		d.RCAStatus = s
	}
	return d
}

func normalizeRCAStatus(raw string) *models.RCAStatus {
	s := models.RCAStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case models.RCAPending, models.RCAProcessing, models.RCACompleted, models.RCAFailed:
		return &s
	case "":
		return nil
	}
	log.API.WithField("rca_status", raw).Debug("Ignoring unrecognized RCA status")
	return nil
}

func (r record) documents() []models.Document {
	if len(r.Documents) == 0 {
		return nil
	}
	docs := make([]models.Document, 0, len(r.Documents))
	for _, raw := range r.Documents {
		var doc models.Document
		decode("documents", raw, &doc)
		if v, ok := raw["uploadedAt"]; ok {
			doc.UploadedAt = parseOptionalTime("documents.uploadedAt", toString(v))
		}
		docs = append(docs, doc)
	}
	return docs
}

// decode runs mapstructure in weakly typed mode so numbers and strings convert freely.
// Field errors are logged; whatever decoded successfully is kept.
func decode(name string, raw map[string]interface{}, out interface{}) {
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Metadata:         &md,
		Result:           out,
	})
	if err != nil {
		log.API.WithField("record", name).Errorf("Failed to build decoder: %s", err.Error())
		return
	}

	if err := dec.Decode(raw); err != nil {
		log.API.WithField("record", name).Warnf("Some backend fields could not be decoded: %s", err.Error())
	}
	if len(md.Unused) > 0 {
		log.API.WithFields(logrus.Fields{"record": name, "fields": md.Unused}).
			Debug("Ignoring unknown backend fields")
	}
}

func defaultString(v, otherwise string) string {
	if strings.TrimSpace(v) == "" {
		return otherwise
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
