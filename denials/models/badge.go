package models

// Badge is how a status is presented on the dashboard.
type Badge struct {
	Label string `json:"label"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

var StatusBadges = map[Status]Badge{
	StatusInReview:    {Label: "In Review", Color: "yellow", Icon: "clock"},
	StatusAppealFiled: {Label: "Appeal Filed", Color: "blue", Icon: "file-text"},
	StatusDenied:      {Label: "Denied", Color: "red", Icon: "x-circle"},
	StatusResolved:    {Label: "Resolved", Color: "green", Icon: "check-circle"},
}

var SeverityBadges = map[Severity]Badge{
	SeverityHigh:   {Label: "High", Color: "red", Icon: "alert-triangle"},
	SeverityMedium: {Label: "Medium", Color: "yellow", Icon: "alert-circle"},
	SeverityLow:    {Label: "Low", Color: "green", Icon: "info"},
}

// BadgeFor returns the presentation for s. Unknown statuses render as In Review, matching
// the normalizer's default.
func BadgeFor(s Status) Badge {
	if b, ok := StatusBadges[s]; ok {
		return b
	}
	return StatusBadges[StatusInReview]
}
