// Package analysis runs root cause analysis and appeal generation against the backend and
// falls back to locally generated results when the backend cannot answer. Callers always
// get a result; the Outcome arm tells them which path produced it.
package analysis

import (
	"context"
	"time"

	"github.com/CMSgov/denial-review-app/denials/constants"
	"github.com/CMSgov/denial-review-app/denials/models"
	"github.com/CMSgov/denial-review-app/denials/normalize"
	"github.com/CMSgov/denial-review-app/log"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Backend is the part of the gateway used by the orchestrator.
type Backend interface {
	TriggerRCA(ctx context.Context, id string) (map[string]interface{}, error)
	GenerateAppeal(ctx context.Context, id string) (map[string]interface{}, error)
}

type Orchestrator struct {
	backend   Backend
	knowledge *KnowledgeBase
	now       func() time.Time
}

func NewOrchestrator(backend Backend) *Orchestrator {
	return &Orchestrator{backend: backend, knowledge: DefaultKnowledgeBase, now: time.Now}
}

// TriggerAnalysis asks the backend for a root cause analysis of d. The backend response
// must carry an rcaResult object; anything else yields an offline analysis.
func (o *Orchestrator) TriggerAnalysis(ctx context.Context, d models.Denial) Outcome[models.RCAResult] {
	logger := log.Analysis.WithField("denial_id", d.ID)

	resp, err := o.backend.TriggerRCA(ctx, d.ID)
	if err == nil {
		raw, ok := resp["rcaResult"].(map[string]interface{})
		if ok {
			remote := normalize.NormalizeAnalysis(raw)
			logger.Info("Root cause analysis completed by backend")
			return Remote(models.RCAResult{Source: models.SourceAPI, Remote: &remote})
		}
		err = errors.New(constants.RCAMissingErr)
	}

	result := o.OfflineAnalysis(d)
	logger.WithField("cause", err.Error()).Warn("Backend analysis unavailable, using offline analysis")
	return Offline(result, err)
}

// OfflineAnalysis is the local analysis of d. It never fails.
func (o *Orchestrator) OfflineAnalysis(d models.Denial) models.RCAResult {
	name, issues := o.knowledge.Match(d.DenialReason)
	log.Analysis.WithFields(logrus.Fields{"denial_id": d.ID, "profile": name}).Debug("Matched offline analysis profile")
	return models.RCAResult{Source: models.SourceOffline, Issues: issues}
}

// PrepareAppeal asks the backend to generate an appeal for d. Each call is independent:
// the result replaces any earlier one and nothing is carried over.
func (o *Orchestrator) PrepareAppeal(ctx context.Context, d models.Denial) Outcome[models.AppealResult] {
	logger := log.Analysis.WithField("denial_id", d.ID)

	resp, err := o.backend.GenerateAppeal(ctx, d.ID)
	if err == nil {
		raw := resp
		if inner, ok := resp["appealResult"].(map[string]interface{}); ok {
			raw = inner
		}
		appeal := normalize.NormalizeAppeal(raw)
		logger.WithField("appeal_status", appeal.Status).Info("Appeal generated by backend")
		return Remote(appeal)
	}

	logger.WithField("cause", err.Error()).Warn("Backend appeal generation unavailable, using offline letter")
	return Offline(o.OfflineAppeal(d), err)
}

// OfflineAppeal is the locally generated appeal for d.
func (o *Orchestrator) OfflineAppeal(d models.Denial) models.AppealResult {
	now := o.now()
	return models.AppealResult{
		Status:               models.AppealGeneratedOffline,
		EmailDraft:           OfflineLetter(d, now),
		SupportDocumentLinks: []string{},
		MissingInformation:   []string{},
		GeneratedAt:          now,
		JobID:                0,
		Source:               models.SourceOffline,
	}
}
