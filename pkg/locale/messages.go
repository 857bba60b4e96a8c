package locale

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	en := language.English
	message.SetString(en, CheckSuccess, "Success: rolled %d against difficulty %d.")
	message.SetString(en, CheckFailure, "Failure: rolled %d against difficulty %d.")
	message.SetString(en, CheckCriticalSuccess, "Critical success! A natural %d.")
	message.SetString(en, CheckCriticalFailure, "Critical failure! A natural %d.")
	message.SetString(en, CheckCriticalSuccessValue, "Critical roll of %d, total %d.")
	message.SetString(en, CheckCriticalFailureValue, "Disastrous roll of %d, total %d.")
	message.SetString(en, CheckValueDetermined, "Result: %d.")

	message.SetString(en, CombatEncounterNotFound, "Encounter not found.")
	message.SetString(en, CombatEncounterInactive, "The encounter is not active.")
	message.SetString(en, CombatActorNotFound, "Acting character %s could not be found.")
	message.SetString(en, CombatActorNotInCombat, "%s is not taking part in this encounter.")
	message.SetString(en, CombatTargetMissing, "An attack needs a target.")
	message.SetString(en, CombatTargetNotFound, "Target %s could not be found.")
	message.SetString(en, CombatTargetNotInCombat, "%s is not taking part in this encounter.")
	message.SetString(en, CombatTargetDefeated, "%s is already defeated.")
	message.SetString(en, CombatUnknownAction, "Unknown combat action %q.")
	message.SetString(en, CombatHit, "%s hits %s for %d damage.")
	message.SetString(en, CombatCriticalHit, "Critical hit! %s strikes %s for %d damage.")
	message.SetString(en, CombatMiss, "%s misses %s.")
	message.SetString(en, CombatFumble, "%s fumbles the attack on %s.")
	message.SetString(en, CombatTargetFalls, "%s falls.")
	message.SetString(en, CombatLookupFailed, "The action could not be resolved right now.")
	message.SetString(en, RelationshipGenericBonus, "Relationship influence")

	ru := language.Russian
	message.SetString(ru, CheckSuccess, "Успех: выпало %d против сложности %d.")
	message.SetString(ru, CheckFailure, "Провал: выпало %d против сложности %d.")
	message.SetString(ru, CheckCriticalSuccess, "Критический успех! Выпало %d.")
	message.SetString(ru, CheckCriticalFailure, "Критический провал! Выпало %d.")
	message.SetString(ru, CheckCriticalSuccessValue, "Критический бросок %d, итог %d.")
	message.SetString(ru, CheckCriticalFailureValue, "Провальный бросок %d, итог %d.")
	message.SetString(ru, CheckValueDetermined, "Результат: %d.")

	message.SetString(ru, CombatEncounterNotFound, "Бой не найден.")
	message.SetString(ru, CombatEncounterInactive, "Бой не активен.")
	message.SetString(ru, CombatActorNotFound, "Персонаж %s не найден.")
	message.SetString(ru, CombatActorNotInCombat, "%s не участвует в этом бою.")
	message.SetString(ru, CombatTargetMissing, "Для атаки нужна цель.")
	message.SetString(ru, CombatTargetNotFound, "Цель %s не найдена.")
	message.SetString(ru, CombatTargetNotInCombat, "%s не участвует в этом бою.")
	message.SetString(ru, CombatTargetDefeated, "%s уже повержен.")
	message.SetString(ru, CombatUnknownAction, "Неизвестное боевое действие %q.")
	message.SetString(ru, CombatHit, "%s попадает по %s и наносит %d урона.")
	message.SetString(ru, CombatCriticalHit, "Критическое попадание! %s наносит %s %d урона.")
	message.SetString(ru, CombatMiss, "%s промахивается по %s.")
	message.SetString(ru, CombatFumble, "%s проваливает атаку на %s.")
	message.SetString(ru, CombatTargetFalls, "%s падает.")
	message.SetString(ru, CombatLookupFailed, "Действие сейчас не может быть выполнено.")
	message.SetString(ru, RelationshipGenericBonus, "Влияние отношений")
}
