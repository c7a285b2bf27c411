package domain

// Automation catalog. The set of codes is closed; records with anything
// else resolve to the default code during transformation, so downstream
// components never see an unknown automation.
const DefaultAutomationCode = "DB"

// AutomationCodes lists every known automation code in catalog order.
var AutomationCodes = []string{"WB", "IB", "CB", "DB", "EB", "TB"}

// AutomationNames maps codes to their display names.
var AutomationNames = map[string]string{
	"WB": "Web Bot",
	"IB": "Intake Bot",
	"CB": "Comment Bot",
	"DB": "Database Reactivation",
	"EB": "Email Bot",
	"TB": "Text Bot",
}

var automationCodeSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(AutomationCodes))
	for _, code := range AutomationCodes {
		set[code] = struct{}{}
	}
	return set
}()

// IsValidAutomationCode reports whether code belongs to the catalog.
func IsValidAutomationCode(code string) bool {
	_, ok := automationCodeSet[code]
	return ok
}
