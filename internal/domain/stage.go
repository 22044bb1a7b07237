// Package domain defines the persistence models for visitor sessions,
// messages, and feedback, plus the qualification Stage enumeration. These
// types are mapped with GORM and form the core data layer of the widget
// backend.
package domain

// Stage is one named state in the qualification dialogue's fixed progression.
// The value is persisted as plain text on the session row; an unknown value
// read back from storage invalidates the whole session.
type Stage string

const (
	StageGreeting           Stage = "greeting"
	StageDiscovery          Stage = "discovery"
	StageCollectingName     Stage = "collecting_name"
	StageCollectingEmail    Stage = "collecting_email"
	StageCollectingCompany  Stage = "collecting_company"
	StageCollectingJobTitle Stage = "collecting_job_title"
	StageCollectingLocation Stage = "collecting_location"
	StageScheduling         Stage = "scheduling"
	StageQualified          Stage = "qualified"
	StageGeneralChat        Stage = "general_chat"
)

// Valid reports whether s is a member of the closed Stage enumeration.
func (s Stage) Valid() bool {
	switch s {
	case StageGreeting, StageDiscovery, StageCollectingName, StageCollectingEmail,
		StageCollectingCompany, StageCollectingJobTitle, StageCollectingLocation,
		StageScheduling, StageQualified, StageGeneralChat:
		return true
	}
	return false
}

// Absorbing reports whether s is one of the terminal-ish stages in which no
// further fact collection is forced and every turn is delegated to the
// generative backend.
func (s Stage) Absorbing() bool {
	return s == StageQualified || s == StageGeneralChat
}
