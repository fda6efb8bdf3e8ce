package validator

import (
	"slices"
	"testing"

	"github.com/valpere/doctran/internal/detector"
)

func TestIsValid(t *testing.T) {
	v := New(detector.New())

	tests := []struct {
		name    string
		text    string
		target  string
		want    bool
		wantErr bool
	}{
		{"no target", "Anything goes here, whatever the language.", "", true, false},
		{"blank translation", " \n ", "fr", false, true},
		{"too short to judge", "Hello", "fr", true, false},
		{"left in source language", "The engine returned this sentence without translating it.", "fr", false, true},
		{"matches target", "Le moteur a bien traduit cette phrase en français.", "fr", true, false},
		{"regional target", "O relatório foi traduzido e revisado pela equipe.", "pt-BR", true, false},
		{"script subtag", "这份报告已经被翻译成中文并且经过了仔细的审核。", "zh_Hans", true, false},
		{"upper-case target", "Der Bericht wurde vollständig ins Deutsche übersetzt.", "DE", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.IsValid(tt.text, tt.target)
			if got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("IsValid() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBaseLanguage(t *testing.T) {
	tests := map[string]string{
		"fr":      "fr",
		"FR":      "fr",
		"pt-BR":   "pt",
		"zh_Hans": "zh",
		"sr-Latn": "sr",
	}
	for in, want := range tests {
		if got := baseLanguage(in); got != want {
			t.Errorf("baseLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOffenders(t *testing.T) {
	v := New()

	translations := []string{
		"Le rapport annuel a été traduit sans difficulté.",
		"This paragraph stayed in English after the first pass.",
		"",
		"OK",
		"Les chiffres du dernier trimestre sont provisoires.",
		"Dieser Absatz ist versehentlich auf Deutsch geblieben.",
	}
	if got := v.Offenders(translations, "fr"); !slices.Equal(got, []int{1, 5}) {
		t.Errorf("Offenders() = %v, want [1 5]", got)
	}
}
