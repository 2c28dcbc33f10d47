package model

// Severity ranks findings so that reports list the most urgent first.
type Severity int

const (
	// SeverityInfo is for findings that need review but rarely action.
	SeverityInfo Severity = iota
	// SeverityLow is for weak signals such as cloud asset listings.
	SeverityLow
	// SeverityMedium is for template-based vulnerability hits.
	SeverityMedium
	// SeverityHigh is for takeovers and reflected XSS.
	SeverityHigh
	// SeverityCritical is for leaked credentials.
	SeverityCritical
)

// String returns a human-readable representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Alert labels used by the findings stages.
const (
	LabelTakeover   = "Subdomain Takeover"
	LabelCloud      = "Cloud Assets"
	LabelJSSecrets  = "JS Secrets"
	LabelNuclei     = "Nuclei Vulns"
	LabelXSS        = "XSS Findings"
	LabelTrufflehog = "Trufflehog Secrets"
)

// labelSeverity maps alert labels to severity.
var labelSeverity = map[string]Severity{
	LabelTakeover:   SeverityHigh,
	LabelCloud:      SeverityLow,
	LabelJSSecrets:  SeverityCritical,
	LabelNuclei:     SeverityMedium,
	LabelXSS:        SeverityHigh,
	LabelTrufflehog: SeverityCritical,
}

// SeverityOf returns the severity for an alert label.
// Unknown labels are SeverityInfo.
func SeverityOf(label string) Severity {
	if s, ok := labelSeverity[label]; ok {
		return s
	}
	return SeverityInfo
}
