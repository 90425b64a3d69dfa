package models

import "time"

// Status is the UI-facing denial status. It is always one of the four values below.
type Status string

const (
	StatusInReview    Status = "InReview"
	StatusAppealFiled Status = "AppealFiled"
	StatusDenied      Status = "Denied"
	StatusResolved    Status = "Resolved"
)

// Statuses lists the canonical statuses in display order.
var Statuses = []Status{StatusInReview, StatusAppealFiled, StatusDenied, StatusResolved}

// Valid reports whether s is one of the canonical statuses.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// RCAStatus is the internal marker for backend RCA processing.
type RCAStatus string

const (
	RCAPending    RCAStatus = "pending"
	RCAProcessing RCAStatus = "processing"
	RCACompleted  RCAStatus = "completed"
	RCAFailed     RCAStatus = "failed"
)

// Denial is the stable record every list and detail view renders. Every field is populated
// after normalization.
type Denial struct {
	ID               string     `json:"id"`
	ServiceDate      time.Time  `json:"serviceDate"`
	FacilityLocation string     `json:"facilityLocation"`
	PatientName      string     `json:"patientName"`
	PatientID        string     `json:"patientId"`
	ClaimNumber      string     `json:"claimNumber"`
	InsurancePayer   string     `json:"insurancePayer"`
	DenialReason     string     `json:"denialReason"`
	ClaimAmount      float64    `json:"claimAmount"`
	Status           Status     `json:"status"`
	Priority         Priority   `json:"priority"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	RCAStatus        *RCAStatus `json:"rcaStatus,omitempty"`
}

// DenialDetail extends Denial with the optional fields of the detail screen.
type DenialDetail struct {
	Denial

	Summary        string     `json:"summary,omitempty"`
	RootCause      string     `json:"rootCause,omitempty"`
	AppealLetter   string     `json:"appealLetter,omitempty"`
	AppealDeadline *time.Time `json:"appealDeadline,omitempty"`
	ClaimType      string     `json:"claimType,omitempty"`
	ProviderName   string     `json:"providerName,omitempty"`
	ProviderNPI    string     `json:"providerNpi,omitempty"`
	Diagnosis      string     `json:"diagnosis,omitempty"`
	ActionTaken    string     `json:"actionTaken,omitempty"`
	ResolutionDate *time.Time `json:"resolutionDate,omitempty"`

	AppealResult *AppealResult   `json:"appealResult,omitempty"`
	RCAResult    *RemoteAnalysis `json:"rcaResult,omitempty"`
	Form837Data  *Form837Data    `json:"form837Data,omitempty"`
	Form835Data  *Form835Data    `json:"form835Data,omitempty"`
	Documents    []Document      `json:"documents,omitempty"`
}

// Form837Data is the claim submission view of a denial, copied from backend scalars.
type Form837Data struct {
	BillingProviderName string   `json:"billingProviderName,omitempty"`
	BillingProviderNPI  string   `json:"billingProviderNpi,omitempty"`
	SubscriberName      string   `json:"subscriberName,omitempty"`
	SubscriberID        string   `json:"subscriberId,omitempty"`
	ClaimNumber         string   `json:"claimNumber,omitempty"`
	ServiceDate         string   `json:"serviceDate,omitempty"`
	DiagnosisCode       string   `json:"diagnosisCode,omitempty"`
	ProcedureCode       string   `json:"procedureCode,omitempty"`
	PlaceOfService      string   `json:"placeOfService,omitempty"`
	TotalCharge         *float64 `json:"totalCharge,omitempty"`
}

// Form835Data is the payment advice view of a denial, copied from backend scalars.
type Form835Data struct {
	PayerName            string   `json:"payerName,omitempty"`
	PayerClaimControl    string   `json:"payerClaimControlNumber,omitempty"`
	ClaimStatusCode      string   `json:"claimStatusCode,omitempty"`
	AdjustmentGroupCode  string   `json:"adjustmentGroupCode,omitempty"`
	AdjustmentReasonCode string   `json:"adjustmentReasonCode,omitempty"`
	RemarkCode           string   `json:"remarkCode,omitempty"`
	BilledAmount         *float64 `json:"billedAmount,omitempty"`
	PaidAmount           *float64 `json:"paidAmount,omitempty"`
	PaymentDate          string   `json:"paymentDate,omitempty"`
}

// Document is a supporting document attached to a denial.
type Document struct {
	ID         string     `json:"id" mapstructure:"id"`
	FileName   string     `json:"fileName" mapstructure:"fileName"`
	Type       string     `json:"type" mapstructure:"type"`
	UploadedAt *time.Time `json:"uploadedAt,omitempty" mapstructure:"-"`
	URL        string     `json:"url,omitempty" mapstructure:"url"`
}
