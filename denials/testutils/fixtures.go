package testutils

import (
	"context"
	"fmt"
	"time"

	"github.com/Pallinder/go-randomdata"
	"github.com/stretchr/testify/mock"
)

// CtxMatcher allow us to validate that the caller supplied a context.Context argument
// See: https://github.com/stretchr/testify/issues/519
var CtxMatcher = mock.MatchedBy(func(ctx context.Context) bool { return true })

var denialReasons = []string{
	"Denied - CO197 prior authorization required",
	"insufficient documentation",
	"CO-50 not medically necessary",
	"CO-16 claim lacks information",
}

// RandomRecord returns a backend denial record with the given backend status and random
// identifying fields.
func RandomRecord(id, status string) map[string]interface{} {
	serviceDate := time.Now().AddDate(0, 0, -randomdata.Number(1, 90)).UTC()
	return map[string]interface{}{
		"id":               id,
		"serviceDate":      serviceDate.Format("2006-01-02"),
		"facilityLocation": randomdata.City() + " Medical Center",
		"patientName":      randomdata.FirstName(randomdata.RandomGender) + " " + randomdata.LastName(),
		"patientId":        randomdata.Alphanumeric(10),
		"claimNumber":      "CLM-" + randomdata.StringNumberExt(1, "", 8),
		"insurancePayer":   randomdata.StringSample("Aetna", "Cigna", "Humana", "UnitedHealthcare"),
		"denialReason":     denialReasons[randomdata.Number(len(denialReasons))],
		"claimAmount":      randomdata.Decimal(100, 50000, 2),
		"status":           status,
		"createdAt":        serviceDate.Add(48 * time.Hour).Format(time.RFC3339),
		"updatedAt":        time.Now().UTC().Format(time.RFC3339),
	}
}

// RandomRecords returns one record per status, with ids D-1, D-2, ...
func RandomRecords(statuses ...string) []map[string]interface{} {
	records := make([]map[string]interface{}, len(statuses))
	for i, s := range statuses {
		records[i] = RandomRecord(fmt.Sprintf("D-%d", i+1), s)
	}
	return records
}
