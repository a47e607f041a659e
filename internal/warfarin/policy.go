// Package warfarin implements the warfarin dose-adjustment rules used by the dosing flow.
//
// Everything here is a pure function over static tables: the dose-adjustment table keyed by INR,
// the independent follow-up interval table, and the supplement interaction catalog.
package warfarin

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/WarfarinBot/internal/models"
)

// EmergencyDirective is the complete reply when the patient reports bleeding.
const EmergencyDirective = "🚨 มีภาวะเลือดออก: หยุดยาวาร์ฟารินทันที และให้ยาต้านฤทธิ์ (Vitamin K) ทางหลอดเลือดดำ พร้อมไปโรงพยาบาลโดยด่วน"

// DoseRule maps an INR interval to a directive. The interval is everything above the previous
// rule's bound up to Upper (inclusive when UpperInclusive is set).
type DoseRule struct {
	Name           string
	Upper          float64
	UpperInclusive bool
	Directive      string
	// LowMultiplier and HighMultiplier scale the weekly dose; both zero means no dose math.
	LowMultiplier  float64
	HighMultiplier float64
}

func (r DoseRule) contains(inr float64) bool {
	if r.UpperInclusive {
		return inr <= r.Upper
	}
	return inr < r.Upper
}

// hasDoseMath reports whether the rule produces a new weekly dose.
func (r DoseRule) hasDoseMath() bool {
	return r.LowMultiplier > 0 && r.HighMultiplier > 0
}

// DoseTable is ordered by ascending INR and covers [0, +Inf) without gaps; first match wins.
var DoseTable = []DoseRule{
	{
		Name:           "below_1_5",
		Upper:          1.5,
		Directive:      "🔺 INR ต่ำกว่าเป้าหมาย: เพิ่มขนาดยา 10–20%",
		LowMultiplier:  1.10,
		HighMultiplier: 1.20,
	},
	{
		Name:           "1_5_to_1_9",
		Upper:          2.0,
		Directive:      "🔺 INR ต่ำกว่าเป้าหมายเล็กน้อย: เพิ่มขนาดยา 5–10%",
		LowMultiplier:  1.05,
		HighMultiplier: 1.10,
	},
	{
		Name:           "2_0_to_3_0",
		Upper:          3.0,
		UpperInclusive: true,
		Directive:      "✅ INR อยู่ในช่วงเป้าหมาย: คงขนาดยาเดิม",
	},
	{
		Name:           "3_1_to_3_9",
		Upper:          4.0,
		Directive:      "🔻 INR สูงกว่าเป้าหมายเล็กน้อย: ลดขนาดยา 5–10%",
		LowMultiplier:  0.90,
		HighMultiplier: 0.95,
	},
	{
		Name:           "4_0_to_4_9",
		Upper:          5.0,
		Directive:      "🔻 INR สูง: หยุดยา 1 วัน แล้วลดขนาดยา 10%",
		LowMultiplier:  0.90,
		HighMultiplier: 0.90,
	},
	{
		Name:      "5_0_to_8_9",
		Upper:     9.0,
		Directive: "⚠️ INR สูงมาก: หยุดยา 1–2 วัน และพิจารณาให้ Vitamin K1 ขนาดต่ำ (1–2.5 mg รับประทาน)",
	},
	{
		Name:           "9_0_and_above",
		Upper:          math.MaxFloat64,
		UpperInclusive: true,
		Directive:      "🚨 INR สูงอันตราย: หยุดยา และพิจารณาให้ Vitamin K1 ขนาดสูง (2.5–5 mg รับประทาน)",
	},
}

// SelectRule returns the single dose rule whose interval contains inr.
func SelectRule(inr float64) DoseRule {
	for _, r := range DoseTable {
		if r.contains(inr) {
			return r
		}
	}
	return DoseTable[len(DoseTable)-1]
}

// Recommend builds the recommendation text for a completed questionnaire.
// Bleeding short-circuits to EmergencyDirective; otherwise the dose directive is followed by an
// optional supplement warning and the follow-up instruction computed from now.
func Recommend(inr, weeklyDose float64, bleeding models.Bleeding, supplementText string, now time.Time) string {
	if bleeding == models.BleedingYes {
		return EmergencyDirective
	}

	rule := SelectRule(inr)

	var b strings.Builder
	b.WriteString("💊 ผลการประเมินขนาดยาวาร์ฟาริน\n")
	fmt.Fprintf(&b, "INR: %s | ขนาดยาปัจจุบัน: %s mg/สัปดาห์\n\n", formatINR(inr), formatDose(weeklyDose))
	b.WriteString(rule.Directive)
	if line := doseLine(rule, weeklyDose); line != "" {
		b.WriteString("\n")
		b.WriteString(line)
	}

	if warning := DetectRisk(supplementText); warning != "" {
		b.WriteString("\n\n")
		b.WriteString(warning)
	}

	b.WriteString("\n\n")
	b.WriteString(FollowupText(inr, now))
	return b.String()
}

func doseLine(rule DoseRule, weeklyDose float64) string {
	if !rule.hasDoseMath() {
		return ""
	}
	low := weeklyDose * rule.LowMultiplier
	high := weeklyDose * rule.HighMultiplier
	if rule.LowMultiplier == rule.HighMultiplier {
		return fmt.Sprintf("ขนาดยาใหม่: %s mg/สัปดาห์", formatDose(low))
	}
	return fmt.Sprintf("ขนาดยาใหม่: %s–%s mg/สัปดาห์", formatDose(low), formatDose(high))
}

func formatDose(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func formatINR(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
