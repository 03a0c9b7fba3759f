package relay

import (
	"reflect"
	"testing"
)

func TestValidateEvents(t *testing.T) {
	invalid := ValidateEvents([]string{"task.created", "bogus.event"})
	if !reflect.DeepEqual(invalid, []string{"bogus.event"}) {
		t.Errorf("ValidateEvents() = %v, want [bogus.event]", invalid)
	}

	if invalid := ValidateEvents([]string{"member.added", "incident.created"}); invalid != nil {
		t.Errorf("ValidateEvents() = %v for valid input, want nil", invalid)
	}
}

func TestCatalogLabels(t *testing.T) {
	for _, event := range Events() {
		if !IsValidEvent(event) {
			t.Errorf("catalog event %q not valid according to IsValidEvent", event)
		}
		if EventLabel(event) == event {
			t.Errorf("catalog event %q has no label", event)
		}
	}

	if IsValidEvent("task.deleted") {
		t.Error("IsValidEvent accepted an unknown event")
	}
	if EventLabel("task.deleted") != "task.deleted" {
		t.Error("EventLabel should fall back to the raw name for unknown events")
	}
}
