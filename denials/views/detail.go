package views

import (
	"context"
	"time"

	"github.com/CMSgov/denial-review-app/denials/models"
	"github.com/CMSgov/denial-review-app/denials/normalize"
	"github.com/CMSgov/denial-review-app/log"
	"github.com/pkg/errors"
)

// Field is one labelled value on the detail screen.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type DetailView struct {
	Denial models.DenialDetail `json:"denial"`
	Badge  models.Badge        `json:"badge"`
	Fields []Field             `json:"fields"`
	// RCA is the analysis the backend already holds for this denial, if any.
	RCA *models.RCAResult `json:"rca,omitempty"`
}

type DetailController struct {
	backend Backend
}

func NewDetailController(backend Backend) *DetailController {
	return &DetailController{backend: backend}
}

func (c *DetailController) Fetch(ctx context.Context, id string) (DetailView, error) {
	raw, err := c.backend.GetDenial(ctx, id)
	if err != nil {
		log.API.WithField("denial_id", id).Errorf("Failed to fetch denial: %s", err.Error())
		return DetailView{}, retryable(err)
	}
	return newDetailView(normalize.NormalizeDetail(raw)), nil
}

// UpdateStatus writes status using the backend's vocabulary and returns the updated denial.
func (c *DetailController) UpdateStatus(ctx context.Context, id string, status models.Status) (models.Denial, error) {
	backend, ok := normalize.BackendStatus(status)
	if !ok {
		return models.Denial{}, &Error{Msg: errors.Errorf("invalid status %q", status).Error()}
	}

	raw, err := c.backend.UpdateStatus(ctx, id, backend)
	if err != nil {
		log.API.WithField("denial_id", id).Errorf("Failed to update status: %s", err.Error())
		return models.Denial{}, retryable(err)
	}
	log.API.WithField("denial_id", id).Infof("Status updated to %s", status)
	return normalize.NormalizeDenial(raw), nil
}

func newDetailView(d models.DenialDetail) DetailView {
	v := DetailView{
		Denial: d,
		Badge:  models.BadgeFor(d.Status),
		Fields: []Field{
			{"Summary", orNotAvailable(d.Summary)},
			{"Root Cause", orNotAvailable(d.RootCause)},
			{"Claim Type", orNotAvailable(d.ClaimType)},
			{"Provider Name", orNotAvailable(d.ProviderName)},
			{"Provider NPI", orNotAvailable(d.ProviderNPI)},
			{"Diagnosis", orNotAvailable(d.Diagnosis)},
			{"Action Taken", orNotAvailable(d.ActionTaken)},
			{"Appeal Deadline", dateOrNotAvailable(d.AppealDeadline)},
			{"Resolution Date", dateOrNotAvailable(d.ResolutionDate)},
		},
	}
	if d.RCAResult != nil {
		remote := *d.RCAResult
		v.RCA = &models.RCAResult{Source: models.SourceCached, Remote: &remote}
	}
	return v
}

func orNotAvailable(s string) string {
	if s == "" {
		return NotAvailable
	}
	return s
}

func dateOrNotAvailable(t *time.Time) string {
	if t == nil {
		return NotAvailable
	}
	return t.Format("Jan 2, 2006")
}
