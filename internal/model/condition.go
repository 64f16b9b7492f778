package model

import "strings"

// Condition is a grade on the Goldmine scale used by both marketplaces.
type Condition string

const (
	ConditionMint         Condition = "M"
	ConditionNearMint     Condition = "NM"
	ConditionVeryGoodPlus Condition = "VG+"
	ConditionVeryGood     Condition = "VG"
	ConditionGoodPlus     Condition = "G+"
	ConditionGood         Condition = "G"
	ConditionFair         Condition = "F"
	ConditionPoor         Condition = "P"
	ConditionUnknown      Condition = "UNKNOWN"
)

// conditionMap maps lowercased marketplace phrasings to grades.
var conditionMap = map[string]Condition{
	"m":                        ConditionMint,
	"mint":                     ConditionMint,
	"mint (m)":                 ConditionMint,
	"brand new":                ConditionMint,
	"new":                      ConditionMint,
	"sealed":                   ConditionMint,
	"nm":                       ConditionNearMint,
	"m-":                       ConditionNearMint,
	"near mint":                ConditionNearMint,
	"near mint (nm or m-)":     ConditionNearMint,
	"like new":                 ConditionNearMint,
	"used - like new":          ConditionNearMint,
	"vg+":                      ConditionVeryGoodPlus,
	"very good plus":           ConditionVeryGoodPlus,
	"very good plus (vg+)":     ConditionVeryGoodPlus,
	"used - very good plus":    ConditionVeryGoodPlus,
	"vg":                       ConditionVeryGood,
	"very good":                ConditionVeryGood,
	"very good (vg)":           ConditionVeryGood,
	"used - very good":         ConditionVeryGood,
	"used":                     ConditionVeryGood,
	"pre-owned":                ConditionVeryGood,
	"g+":                       ConditionGoodPlus,
	"vg-":                      ConditionGoodPlus,
	"good plus":                ConditionGoodPlus,
	"good plus (g+)":           ConditionGoodPlus,
	"used - good plus":         ConditionGoodPlus,
	"g":                        ConditionGood,
	"good":                     ConditionGood,
	"good (g)":                 ConditionGood,
	"used - good":              ConditionGood,
	"acceptable":               ConditionGood,
	"f":                        ConditionFair,
	"fair":                     ConditionFair,
	"fair (f)":                 ConditionFair,
	"p":                        ConditionPoor,
	"poor":                     ConditionPoor,
	"poor (p)":                 ConditionPoor,
	"for parts or not working": ConditionPoor,
}

// NormalizeCondition maps a raw condition string from either platform to a
// grade. Unrecognized or empty input yields ConditionUnknown.
func NormalizeCondition(raw string) Condition {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return ConditionUnknown
	}
	if c, ok := conditionMap[normalized]; ok {
		return c
	}
	return ConditionUnknown
}
