package views

import (
	"context"
	"strings"

	"github.com/CMSgov/denial-review-app/denials/client"
	"github.com/CMSgov/denial-review-app/denials/models"
	"github.com/CMSgov/denial-review-app/denials/normalize"
	"github.com/CMSgov/denial-review-app/log"
	"github.com/sirupsen/logrus"
)

// ListQuery is what the list screen asks for. Statuses are UI statuses; they are translated
// to the backend vocabulary before the request is made. Search is applied locally.
type ListQuery struct {
	Filter   client.Filter
	Statuses []models.Status
	Search   string
}

type Row struct {
	models.Denial
	Badge models.Badge `json:"badge"`
}

type ListView struct {
	Denials []Row                 `json:"denials"`
	Total   int                   `json:"total"`
	Counts  map[models.Status]int `json:"counts"`
}

type ListController struct {
	backend Backend
}

func NewListController(backend Backend) *ListController {
	return &ListController{backend: backend}
}

// Fetch loads and normalizes the denial list. Counts cover the rows returned, keyed by every
// UI status.
func (c *ListController) Fetch(ctx context.Context, q ListQuery) (ListView, error) {
	filter := q.Filter
	for _, s := range q.Statuses {
		if backend, ok := normalize.BackendStatus(s); ok {
			filter.Statuses = append(filter.Statuses, backend)
		}
	}

	data, err := c.backend.ListDenials(ctx, filter)
	if err != nil {
		log.API.WithField("query", filter.Query().Encode()).Errorf("Failed to fetch denials: %s", err.Error())
		return ListView{}, retryable(err)
	}

	denials := normalize.NormalizeList(data)
	view := ListView{Denials: []Row{}, Counts: make(map[models.Status]int, len(models.Statuses))}
	for _, s := range models.Statuses {
		view.Counts[s] = 0
	}

	search := strings.ToLower(strings.TrimSpace(q.Search))
	for _, d := range denials {
		if search != "" && !matches(d, search) {
			continue
		}
		view.Denials = append(view.Denials, Row{Denial: d, Badge: models.BadgeFor(d.Status)})
		view.Counts[d.Status]++
	}
	view.Total = len(view.Denials)

	log.API.WithFields(logrus.Fields{"fetched": len(denials), "shown": view.Total}).Debug("Fetched denial list")
	return view, nil
}

func matches(d models.Denial, search string) bool {
	for _, field := range []string{d.PatientName, d.ClaimNumber, d.InsurancePayer} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}
