package rules

// Rule keys consulted by the check engine and the combat processor.
const (
	HiddenRelationshipEffectsPrefix = "hidden_relationship_effects:checks:"
	RelationshipInfluencePrefix     = "relationship_influence:checks:"

	AttackCheckType         = "combat:attack:check_type"
	AttackMainAttribute     = "combat:attack:attacker_main_attribute"
	AttackDefenseAttribute  = "combat:attack:target_defense_attribute"
	AttackDamageFormula     = "combat:attack:damage_formula"
	AttackDamageAttribute   = "combat:attack:damage_attribute"
	CriticalHitEffect       = "combat:critical_hit:effect"
	CriticalHitMultiplier   = "combat:critical_hit:damage_multiplier"
	LocalizationLanguageKey = "localization:language"
)

// CheckDiceNotation is the dice notation rule for a check type.
func CheckDiceNotation(checkType string) string {
	return "checks:" + checkType + ":dice_notation"
}

// CheckBaseAttribute is the actor attribute used as the base modifier for a check type.
func CheckBaseAttribute(checkType string) string {
	return "checks:" + checkType + ":base_attribute"
}

// CheckCritSuccessThreshold is the raw roll at or above which a check is a critical success.
func CheckCritSuccessThreshold(checkType string) string {
	return "checks:" + checkType + ":crit_success_threshold"
}

// CheckCritFailureThreshold is the raw roll at or below which a check is a critical failure.
func CheckCritFailureThreshold(checkType string) string {
	return "checks:" + checkType + ":crit_failure_threshold"
}
