package chat

import "testing"

func TestClassifier_IsAskingClarification(t *testing.T) {
	t.Parallel()

	c := NewClassifier("Can you rephrase")
	tests := []struct {
		text string
		want bool
	}{
		{"Could you clarify which policy?", true},
		{"WHICH ONE DO YOU MEAN", true},
		{"Do you mean the 2024 handbook?", true},
		{"Você quis dizer férias ou licença?", true},
		{"VOCÊ QUIS DIZER isso?", true},
		{"Qual deles você procura?", true},
		{"can you rephrase that?", true},
		{"The policy allows 30 days of leave.", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := c.IsAskingClarification(tt.text); got != tt.want {
			t.Errorf("IsAskingClarification(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestNewClassifier_IgnoresBlankExtras(t *testing.T) {
	t.Parallel()

	c := NewClassifier("", "   ")
	if c.IsAskingClarification("anything at all") {
		t.Error("blank extra phrase must not match everything")
	}
}
