package messaging

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"General", "general"},
		{"Open Houses & Tours", "open-houses-tours"},
		{"  --Leads 2026--  ", "leads-2026"},
		{"Café Listings", "caf-listings"},
		{"a__b", "a-b"},
		{"!!!", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
