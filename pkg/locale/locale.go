// Package locale renders player-facing descriptions of checks and combat actions.
package locale

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys.
const (
	CheckSuccess              = "check.success"
	CheckFailure              = "check.failure"
	CheckCriticalSuccess      = "check.critical_success"
	CheckCriticalFailure      = "check.critical_failure"
	CheckCriticalSuccessValue = "check.critical_success_value"
	CheckCriticalFailureValue = "check.critical_failure_value"
	CheckValueDetermined      = "check.value_determined"

	CombatEncounterNotFound  = "combat.encounter_not_found"
	CombatEncounterInactive  = "combat.encounter_inactive"
	CombatActorNotFound      = "combat.actor_not_found"
	CombatActorNotInCombat   = "combat.actor_not_participant"
	CombatTargetMissing      = "combat.target_missing"
	CombatTargetNotFound     = "combat.target_not_found"
	CombatTargetNotInCombat  = "combat.target_not_participant"
	CombatTargetDefeated     = "combat.target_already_defeated"
	CombatUnknownAction      = "combat.unknown_action"
	CombatHit                = "combat.hit"
	CombatCriticalHit        = "combat.critical_hit"
	CombatMiss               = "combat.miss"
	CombatFumble             = "combat.fumble"
	CombatTargetFalls        = "combat.target_falls"
	CombatLookupFailed       = "combat.lookup_failed"
	RelationshipGenericBonus = "relationship.influence"
)

var supportedTags = []language.Tag{
	language.English,
	language.Russian,
}

var matcher = language.NewMatcher(supportedTags)

// Default returns the default language tag.
func Default() language.Tag {
	return language.English
}

// Supported returns the list of supported language tags.
func Supported() []language.Tag {
	tags := make([]language.Tag, len(supportedTags))
	copy(tags, supportedTags)
	return tags
}

// Match returns the supported tag closest to lang. Unknown or empty values resolve to English.
func Match(lang string) language.Tag {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return Default()
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return Default()
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return Default()
	}
	return supportedTags[idx]
}

// Printer returns a message printer for lang.
func Printer(lang string) *message.Printer {
	return message.NewPrinter(Match(lang))
}

// Sprintf formats the message registered under key in lang.
func Sprintf(lang, key string, args ...any) string {
	return Printer(lang).Sprintf(key, args...)
}
