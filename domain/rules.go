package domain

// Rules holds the tunable limits of the quest game.
type Rules struct {
	DailyQuota          int
	ValidationThreshold int
	DailyValidationCap  int
	CapBonusPoints      int
}

func DefaultRules() Rules {
	return Rules{
		DailyQuota:          3,
		ValidationThreshold: 5,
		DailyValidationCap:  10,
		CapBonusPoints:      1,
	}
}

// Normalize replaces non-positive limits with defaults.
func (r Rules) Normalize() Rules {
	def := DefaultRules()
	if r.DailyQuota <= 0 {
		r.DailyQuota = def.DailyQuota
	}
	if r.ValidationThreshold <= 0 {
		r.ValidationThreshold = def.ValidationThreshold
	}
	if r.DailyValidationCap <= 0 {
		r.DailyValidationCap = def.DailyValidationCap
	}
	if r.CapBonusPoints < 0 {
		r.CapBonusPoints = 0
	}
	return r
}
