package facematch

import (
	"testing"

	"github.com/kozaktomas/photo-library/internal/database"
)

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Honza", "Honza"},
		{"Jiří", "Jiri"},
		{"café", "cafe"},
		{"naïve", "naive"},
		{"hello", "hello"},
		{"Žluťoučký kůň", "Zlutoucky kun"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := RemoveDiacritics(tt.input)
			if result != tt.expected {
				t.Errorf("RemoveDiacritics(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNormalizePersonName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Jan Novák", "jan novak"},
		{"jan-novak", "jan novak"},
		{"JOHN DOE", "john doe"},
		{"jan-novák", "jan novak"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := NormalizePersonName(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizePersonName(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestMatchPeople(t *testing.T) {
	photoBomber := "'Photo Bomber'"
	nickname := "Honzík"
	people := []database.Person{
		{ID: 1, FirstName: "Jan", Surname: "Novák", DisplayName: &nickname},
		{ID: 2, FirstName: "Person", MiddleNames: &photoBomber, Surname: "McPerson"},
		{ID: 3, FirstName: "Jana", Surname: "Dvořáková"},
	}

	tests := []struct {
		query string
		want  []int64
	}{
		{"", []int64{1, 2, 3}},
		{"   ", []int64{1, 2, 3}},
		{"novak", []int64{1}},
		{"JAN", []int64{1, 3}},
		{"jan dvorak", []int64{3}},
		{"honzik", []int64{1}},
		{"photo bomber", []int64{2}},
		{"nobody", nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := MatchPeople(people, tt.query)
			if len(got) != len(tt.want) {
				t.Fatalf("MatchPeople(%q) returned %d people, want %d", tt.query, len(got), len(tt.want))
			}
			for i := range got {
				if got[i].ID != tt.want[i] {
					t.Errorf("MatchPeople(%q)[%d] = %d, want %d", tt.query, i, got[i].ID, tt.want[i])
				}
			}
		})
	}
}
