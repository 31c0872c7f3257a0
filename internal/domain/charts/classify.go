// Package charts groups catalogued workbooks into chart categories and
// builds date-filtered series from them.
package charts

import (
	"fmt"
	"strings"
	"time"
)

// Chart groups
const (
	GroupDryBulkTrade        = "drybulk_trade"
	GroupFleetDevelopment    = "fleet_development"
	GroupIndices             = "indices"
	GroupContainerTradeFleet = "container_trade_fleet"
	GroupSCFIWeekly          = "scfi_weekly"
)

// Rule assigns a group to a lower-cased filename
type Rule struct {
	Group string
	Match func(lower string) bool
}

func containsAll(subs ...string) func(string) bool {
	return func(s string) bool {
		for _, sub := range subs {
			if !strings.Contains(s, sub) {
				return false
			}
		}
		return true
	}
}

func containsAny(subs ...string) func(string) bool {
	return func(s string) bool {
		for _, sub := range subs {
			if strings.Contains(s, sub) {
				return true
			}
		}
		return false
	}
}

// DefaultRules are evaluated in order; the first match wins. Container fleet
// development is checked before plain fleet development.
var DefaultRules = []Rule{
	{GroupDryBulkTrade, containsAll("dry bulk trade")},
	{GroupContainerTradeFleet, func(s string) bool {
		return strings.Contains(s, "fleet development") && containsAny("containership", "container")(s)
	}},
	{GroupFleetDevelopment, containsAll("fleet development")},
	{GroupIndices, containsAny("bci", "bhsi", "bpi", "bsi")},
	{GroupContainerTradeFleet, containsAll("container trade")},
	{GroupSCFIWeekly, containsAll("container scfi")},
}

// Classify returns the group of a filename, or false when no rule matches
func Classify(filename string, rules []Rule) (string, bool) {
	lower := strings.ToLower(filename)
	for _, r := range rules {
		if r.Match(lower) {
			return r.Group, true
		}
	}
	return "", false
}

// Suffix returns the "_mm_yy" version suffix of the month offset months
// away from ref
func Suffix(ref time.Time, offset int) string {
	t := time.Date(ref.Year(), ref.Month()+time.Month(offset), 1, 0, 0, 0, 0, time.UTC)
	return fmt.Sprintf("_%02d_%02d", int(t.Month()), t.Year()%100)
}
