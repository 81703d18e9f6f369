package types

// JustificationType categorizes an advisory record attached to a state
// or report. Per prd001-resolution R4.1.
type JustificationType string

const (
	JustificationInfo    JustificationType = "INFO"
	JustificationWarning JustificationType = "WARNING"
	JustificationError   JustificationType = "ERROR"
	JustificationLatest  JustificationType = "LATEST"
	JustificationCVE     JustificationType = "CVE"
)

// Justification is one structured advisory record explaining a scoring
// or filtering decision. Pipeline units attach these to states; the
// final report carries them per product and run-wide as stack info.
// Per prd001-resolution R4.1-R4.3.
type Justification struct {
	// Type categorizes the record: INFO, WARNING, ERROR, LATEST or CVE.
	Type JustificationType `json:"type" yaml:"type"`

	// Message is the human-readable explanation.
	Message string `json:"message" yaml:"message"`

	// Link points at documentation for the message.
	Link string `json:"link,omitempty" yaml:"link,omitempty"`

	// Package names the package the record concerns, when specific.
	Package string `json:"package,omitempty" yaml:"package,omitempty"`

	// Advisory carries the vulnerability summary for CVE records.
	Advisory string `json:"advisory,omitempty" yaml:"advisory,omitempty"`

	// CVEID is the CVE identifier for CVE records (e.g. "CVE-2025-1234").
	CVEID string `json:"cve_id,omitempty" yaml:"cve_id,omitempty"`

	// VersionRange is the affected version range for CVE records.
	VersionRange string `json:"version_range,omitempty" yaml:"version_range,omitempty"`
}

// Advisory is one recorded vulnerability affecting a version range of a
// package, as stored in the knowledge base. Per prd005-knowledge-base R4.2.
type Advisory struct {
	// Package is the affected package name.
	Package string `json:"package" yaml:"package"`

	// VersionRange is the affected range as a version specifier.
	VersionRange string `json:"version_range" yaml:"version_range"`

	// CVEID is the CVE identifier.
	CVEID string `json:"cve_id" yaml:"cve_id"`

	// Summary describes the vulnerability.
	Summary string `json:"summary" yaml:"summary"`

	// Link points at the advisory source.
	Link string `json:"link,omitempty" yaml:"link,omitempty"`
}

// ManifestPatch is a JSON-patch style operation advised against a
// deployment manifest. Per prd003-pipeline-units R5.2.
type ManifestPatch struct {
	Op    string            `json:"op" yaml:"op"`
	Path  string            `json:"path" yaml:"path"`
	Value map[string]string `json:"value,omitempty" yaml:"value,omitempty"`
}

// ManifestChange is one advised deployment-manifest adjustment produced
// by wrap units for a final stack (e.g. pinning a thread-count env var
// for a known runtime). Per prd003-pipeline-units R5.1-R5.3.
type ManifestChange struct {
	APIVersion string        `json:"apiVersion" yaml:"apiVersion"`
	Kind       string        `json:"kind" yaml:"kind"`
	Patch      ManifestPatch `json:"patch" yaml:"patch"`
}
