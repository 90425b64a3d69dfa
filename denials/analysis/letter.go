package analysis

import (
	"bytes"
	"text/template"
	"time"

	"github.com/CMSgov/denial-review-app/denials/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var letterTemplate = template.Must(template.New("appeal").Parse(`Subject: Appeal for Denied Claim {{.ClaimNumber}}

To Whom It May Concern at {{.InsurancePayer}},

I am writing on behalf of our patient, {{.PatientName}}, to appeal the denial of claim {{.ClaimNumber}} in the amount of {{.Amount}} for services rendered on {{.ServiceDate}} at {{.FacilityLocation}}.

The claim was denied for the following reason: {{.DenialReason}}

We believe this denial should be overturned. The services provided were medically necessary and appropriately documented. Please find the supporting clinical documentation enclosed with this letter.

We respectfully request that you reconsider this claim and process it for payment. Please contact our office if any additional information is required to complete your review.

Sincerely,

Patient Financial Services
{{.FacilityLocation}}
Date: {{.Today}}
`))

var printer = message.NewPrinter(language.AmericanEnglish)

type letterData struct {
	PatientName      string
	ClaimNumber      string
	InsurancePayer   string
	Amount           string
	ServiceDate      string
	DenialReason     string
	FacilityLocation string
	Today            string
}

// OfflineLetter renders the fixed appeal letter for d.
func OfflineLetter(d models.Denial, today time.Time) string {
	data := letterData{
		PatientName:      d.PatientName,
		ClaimNumber:      d.ClaimNumber,
		InsurancePayer:   d.InsurancePayer,
		Amount:           FormatAmount(d.ClaimAmount),
		ServiceDate:      d.ServiceDate.Format("January 2, 2006"),
		DenialReason:     d.DenialReason,
		FacilityLocation: d.FacilityLocation,
		Today:            today.Format("January 2, 2006"),
	}

	var buf bytes.Buffer
	// letterData has only string fields, so execution cannot fail.
	_ = letterTemplate.Execute(&buf, data)
	return buf.String()
}

// FormatAmount renders a claim amount with thousands separators, e.g. $12,345.60.
func FormatAmount(amount float64) string {
	return printer.Sprintf("$%.2f", amount)
}
