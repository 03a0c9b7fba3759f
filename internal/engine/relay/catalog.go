package relay

// Event types that can be relayed to external systems. The catalog is a
// closed set: unknown names are rejected at webhook creation and update,
// never silently stored.
const (
	EventMemberAdded            = "member.added"
	EventMemberRemoved          = "member.removed"
	EventTaskCreated            = "task.created"
	EventTaskCompleted          = "task.completed"
	EventEvidenceUploaded       = "evidence.uploaded"
	EventEvidenceVerified       = "evidence.verified"
	EventPolicyPublished        = "policy.published"
	EventIncidentCreated        = "incident.created"
	EventComplianceScoreChanged = "compliance.score_changed"
)

// eventLabels maps every catalog entry to the label shown in UI and docs.
var eventLabels = map[string]string{
	EventMemberAdded:            "Member Added",
	EventMemberRemoved:          "Member Removed",
	EventTaskCreated:            "Task Created",
	EventTaskCompleted:          "Task Completed",
	EventEvidenceUploaded:       "Evidence Uploaded",
	EventEvidenceVerified:       "Evidence Verified",
	EventPolicyPublished:        "Policy Published",
	EventIncidentCreated:        "Incident Created",
	EventComplianceScoreChanged: "Compliance Score Changed",
}

var eventCatalog = []string{
	EventMemberAdded,
	EventMemberRemoved,
	EventTaskCreated,
	EventTaskCompleted,
	EventEvidenceUploaded,
	EventEvidenceVerified,
	EventPolicyPublished,
	EventIncidentCreated,
	EventComplianceScoreChanged,
}

func IsValidEvent(name string) bool {
	_, ok := eventLabels[name]
	return ok
}

// EventLabel returns the human-readable label for a catalog entry, or the
// raw name if it is not in the catalog.
func EventLabel(event string) string {
	if label, ok := eventLabels[event]; ok {
		return label
	}
	return event
}

// Events returns the catalog in its declared order.
func Events() []string {
	out := make([]string, len(eventCatalog))
	copy(out, eventCatalog)
	return out
}

// ValidateEvents returns every name not present in the catalog.
// An empty result means all names are valid.
func ValidateEvents(events []string) []string {
	var invalid []string
	for _, e := range events {
		if !IsValidEvent(e) {
			invalid = append(invalid, e)
		}
	}
	return invalid
}
