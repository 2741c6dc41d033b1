package swarm

import "strings"

const (
	RoleBuilder  = "builder"
	RoleDesign   = "design"
	RoleCopy     = "copy"
	RoleResearch = "research"
)

// routingRules are checked in order against the lowercased turn; the first
// rule with a matching keyword wins. The heuristic trades accuracy for
// latency: routing synchronously here avoids a model round-trip before the
// primary response can start.
var routingRules = []struct {
	role     string
	keywords []string
}{
	{RoleBuilder, []string{"build", "add", "recreate"}},
	{RoleDesign, []string{"color", "style", "design"}},
	{RoleResearch, []string{"research", "analyze"}},
}

func routeTurn(input string) string {
	lowered := strings.ToLower(input)
	for _, rule := range routingRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lowered, keyword) {
				return rule.role
			}
		}
	}
	return RoleBuilder
}
