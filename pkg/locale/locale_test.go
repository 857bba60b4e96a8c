package locale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestMatch(t *testing.T) {
	tests := map[string]language.Tag{
		"":      language.English,
		"en":    language.English,
		"en-GB": language.English,
		"ru":    language.Russian,
		"ru-RU": language.Russian,
		"!!":    language.English,
	}
	for in, want := range tests {
		assert.Equal(t, want, Match(in), in)
	}
}

func TestSprintf(t *testing.T) {
	assert.Equal(t, "Kara hits Goblin for 5 damage.", Sprintf("en", CombatHit, "Kara", "Goblin", 5))
	assert.Equal(t, "Kara промахивается по Goblin.", Sprintf("ru", CombatMiss, "Kara", "Goblin"))
	assert.Equal(t, "Encounter not found.", Sprintf("fr", CombatEncounterNotFound))
}
