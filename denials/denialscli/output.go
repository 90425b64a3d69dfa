package denialscli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/CMSgov/denial-review-app/denials/analysis"
	"github.com/CMSgov/denial-review-app/denials/models"
	"github.com/CMSgov/denial-review-app/denials/views"
)

var ansiColors = map[string]string{
	"red":    "\x1b[31m",
	"green":  "\x1b[32m",
	"yellow": "\x1b[33m",
	"blue":   "\x1b[34m",
}

const ansiReset = "\x1b[0m"

// colorize renders a badge label in its color. The app writer translates the escape codes
// on terminals that need it.
func colorize(b models.Badge) string {
	code, ok := ansiColors[b.Color]
	if !ok {
		return b.Label
	}
	return code + b.Label + ansiReset
}

func printList(w io.Writer, view views.ListView) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPATIENT\tCLAIM\tPAYER\tAMOUNT\tSERVICE DATE")
	for _, d := range view.Denials {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", d.ID, d.Badge.Label, d.PatientName, d.ClaimNumber,
			d.InsurancePayer, analysis.FormatAmount(d.ClaimAmount), d.ServiceDate.Format(dateLayout))
	}
	tw.Flush()

	fmt.Fprintf(w, "\n%d denials", view.Total)
	for _, s := range models.Statuses {
		fmt.Fprintf(w, "  %s: %d", colorize(models.BadgeFor(s)), view.Counts[s])
	}
	fmt.Fprintln(w)
}

func printDetail(w io.Writer, st views.SessionState) {
	if st.Detail == nil {
		return
	}
	d := st.Detail.Denial
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Denial\t%s\n", d.ID)
	fmt.Fprintf(tw, "Status\t%s\n", colorize(st.Detail.Badge))
	fmt.Fprintf(tw, "Patient\t%s (%s)\n", d.PatientName, d.PatientID)
	fmt.Fprintf(tw, "Claim\t%s\n", d.ClaimNumber)
	fmt.Fprintf(tw, "Payer\t%s\n", d.InsurancePayer)
	fmt.Fprintf(tw, "Facility\t%s\n", d.FacilityLocation)
	fmt.Fprintf(tw, "Amount\t%s\n", analysis.FormatAmount(d.ClaimAmount))
	fmt.Fprintf(tw, "Service Date\t%s\n", d.ServiceDate.Format(dateLayout))
	fmt.Fprintf(tw, "Reason\t%s\n", d.DenialReason)
	for _, f := range st.Detail.Fields {
		fmt.Fprintf(tw, "%s\t%s\n", f.Label, f.Value)
	}
	for _, doc := range d.Documents {
		fmt.Fprintf(tw, "Document\t%s %s (%s)\n", doc.ID, doc.FileName, doc.Type)
	}
	tw.Flush()

	if st.RCA != nil {
		fmt.Fprintln(w)
		printRCA(w, *st.RCA)
	}
}

func printAnalysis(w io.Writer, st views.SessionState) {
	fmt.Fprintln(w, st.StatusLine)
	if st.RCA != nil {
		printRCA(w, *st.RCA)
	}
}

func printRCA(w io.Writer, rca models.RCAResult) {
	fmt.Fprintf(w, "Root cause analysis (%s)\n", rca.Source)
	if rca.Remote != nil {
		for _, part := range []struct{ label, text string }{
			{"Analysis", rca.Remote.Analysis},
			{"Recommendations", rca.Remote.Recommendations},
			{"EDI Files", rca.Remote.EDIFileAnalysis},
			{"Supporting Documents", rca.Remote.SupportingDocsAnalysis},
		} {
			if part.text != "" {
				fmt.Fprintf(w, "%s: %s\n", part.label, part.text)
			}
		}
	}
	for i, issue := range rca.Issues {
		fmt.Fprintf(w, "%d. [%s] %s\n   %s\n   Recommendation: %s\n", i+1,
			colorize(models.SeverityBadges[issue.Severity]), issue.Category, issue.Description, issue.Recommendation)
	}
}
