package classify

import "strings"

// keywordRule maps trigger words to a category. Rules are evaluated in
// order; the first rule with any keyword present in the description wins.
type keywordRule struct {
	category string
	keywords []string
}

var keywordRules = []keywordRule{
	{"Email Infrastructure", []string{"email", "mail", "smtp", "imap"}},
	{"Database", []string{"database", "db", "sql", "connection", "timeout"}},
	{"Network", []string{"network", "connectivity", "internet", "ping"}},
	{"Performance", []string{"slow", "performance", "loading", "timeout"}},
	{"Authentication", []string{"login", "authentication", "password", "access"}},
	{"Security", []string{"security", "virus", "malware", "breach"}},
	{"Application", []string{"application", "app", "service", "server"}},
	{"Infrastructure", []string{"hardware", "disk", "cpu", "memory", "power"}},
}

// matchKeywordRule returns the first category whose keywords appear in the
// description, or "" when no rule fires.
func matchKeywordRule(description string) string {
	lower := strings.ToLower(description)
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.category
			}
		}
	}
	return ""
}

// categoryProcedures lists the standard resolution steps per category.
var categoryProcedures = map[string][]string{
	"Email Infrastructure": {"Check email server status", "Verify DNS MX records", "Restart email services"},
	"Database":             {"Check database connection pool", "Analyze slow queries", "Restart database connections"},
	"Network":              {"Check network switches", "Verify internet connectivity", "Restart network equipment"},
	"Performance":          {"Check server CPU/memory", "Analyze database queries", "Clear application cache"},
	"Authentication":       {"Check authentication service", "Verify LDAP connectivity", "Review security logs"},
	"Security":             {"Isolate affected systems", "Review security logs", "Check for malware"},
	"Application":          {"Check application logs", "Restart application services", "Verify configuration"},
	"Infrastructure":       {"Check hardware status", "Verify power and cooling", "Review system logs"},
}

// categoryTeams routes a predicted category to the owning team.
var categoryTeams = map[string]string{
	"Email Infrastructure": "email-team",
	"Database":             "dba-team",
	"Network":              "network-ops",
	"Performance":          "platform-team",
	"Authentication":       "security-team",
	"Security":             "security-team",
	"Application":          "dev-team",
	"Infrastructure":       "infrastructure-team",
}

const defaultTeam = "support-team"

// categoryBaseTimes holds per-category resolution estimates in minutes,
// used when no resolved historical incident informs the estimate.
var categoryBaseTimes = map[string]int{
	"Email Infrastructure": 45,
	"Database":             30,
	"Network":              60,
	"Performance":          75,
	"Authentication":       25,
	"Security":             120,
	"Application":          40,
	"Infrastructure":       90,
}
