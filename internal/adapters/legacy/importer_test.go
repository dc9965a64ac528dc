package legacy

import (
	"testing"
	"time"

	"github.com/orbitcrm/platform/internal/lead"
	"github.com/orbitcrm/platform/internal/shared/config"
)

func configFixture() config.LegacyConfig {
	return config.LegacyConfig{
		Host:         "localhost",
		Port:         1433,
		Database:     "legacy_crm",
		LeadTable:    "dbo.Leads",
		PollInterval: time.Minute,
	}
}

func TestMapStatus(t *testing.T) {
	tests := []struct {
		legacy string
		want   lead.Status
	}{
		{"open", lead.StatusNew},
		{"Fresh", lead.StatusNew},
		{"", lead.StatusNew},
		{"Working", lead.StatusContacted},
		{"in progress", lead.StatusContacted},
		{"HOT", lead.StatusQualified},
		{"closed won", lead.StatusConverted},
		{"Dead", lead.StatusLost},
		{"  lost  ", lead.StatusLost},
		{"banana", lead.StatusNew},
	}

	for _, tt := range tests {
		if got := mapStatus(tt.legacy); got != tt.want {
			t.Errorf("mapStatus(%q) = %q, want %q", tt.legacy, got, tt.want)
		}
	}
}

func TestSeenDeduplication(t *testing.T) {
	i := New(configFixture(), lead.NewMemoryRepository())

	if i.alreadySeen("a@example.com") {
		t.Error("fresh importer should have seen nothing")
	}
	i.markSeen("a@example.com")
	if !i.alreadySeen("a@example.com") {
		t.Error("marked key should be seen")
	}
	if i.alreadySeen("b@example.com") {
		t.Error("other keys unaffected")
	}
}
