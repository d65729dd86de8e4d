package domain

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Contract", "contract"},
		{"Maison Québec", "maison_quebec"},
		{"  Chalet -- Été 2025 ", "chalet_ete_2025"},
		{"***", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Slugify(tt.in); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewContractIdentity(t *testing.T) {
	plan := NewRatePlan("D", "CPC")

	portal := NewContractIdentity(ModePortal, "0312345678", "Maison", plan)
	if portal.ID != "0312345678" {
		t.Errorf("expected portal contract ID, got %q", portal.ID)
	}
	if portal.RateWithOption != "DCPC" {
		t.Errorf("expected DCPC, got %q", portal.RateWithOption)
	}

	open := NewContractIdentity(ModeOpenData, "", "Maison Québec", plan)
	if open.ID != "opendata_maison_quebec" {
		t.Errorf("expected slugged ID, got %q", open.ID)
	}

	unnamed := NewContractIdentity(ModeOpenData, "", "", plan)
	if unnamed.Name != DefaultContractName || unnamed.ID != "opendata_contract" {
		t.Errorf("unexpected default identity %+v", unnamed)
	}
}
