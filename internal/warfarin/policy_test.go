package warfarin

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/WarfarinBot/internal/models"
)

var testNow = time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)

func TestSelectRuleBoundaries(t *testing.T) {
	tests := []struct {
		inr  float64
		want string
	}{
		{0, "below_1_5"},
		{0.9, "below_1_5"},
		{1.49, "below_1_5"},
		{1.5, "1_5_to_1_9"},
		{1.9, "1_5_to_1_9"},
		{1.95, "1_5_to_1_9"},
		{2.0, "2_0_to_3_0"},
		{2.5, "2_0_to_3_0"},
		{3.0, "2_0_to_3_0"},
		{3.05, "3_1_to_3_9"},
		{3.1, "3_1_to_3_9"},
		{3.9, "3_1_to_3_9"},
		{4.0, "4_0_to_4_9"},
		{4.9, "4_0_to_4_9"},
		{5.0, "5_0_to_8_9"},
		{8.9, "5_0_to_8_9"},
		{9.0, "9_0_and_above"},
		{15, "9_0_and_above"},
	}

	for _, tt := range tests {
		t.Run(formatINR(tt.inr), func(t *testing.T) {
			assert.Equal(t, tt.want, SelectRule(tt.inr).Name)
		})
	}
}

func TestDoseTableIsOrderedAndExhaustive(t *testing.T) {
	for i := 1; i < len(DoseTable); i++ {
		assert.Greater(t, DoseTable[i].Upper, DoseTable[i-1].Upper, "rule %s", DoseTable[i].Name)
	}
	last := DoseTable[len(DoseTable)-1]
	assert.True(t, last.UpperInclusive)
	assert.True(t, last.contains(1e300))
}

func TestRecommendIncreaseRange(t *testing.T) {
	out := Recommend(0.9, 20, models.BleedingNo, "", testNow)

	assert.Contains(t, out, "เพิ่มขนาดยา 10–20%")
	assert.Contains(t, out, "22.0–24.0 mg/สัปดาห์")
	assert.Contains(t, out, "อีก 7 วัน")
	assert.Contains(t, out, testNow.AddDate(0, 0, 7).Format(FollowupDateLayout))
}

func TestRecommendMaintainDose(t *testing.T) {
	out := Recommend(2.5, 28, models.BleedingNo, "", testNow)

	assert.Contains(t, out, "คงขนาดยาเดิม")
	assert.NotContains(t, out, "ขนาดยาใหม่")
	assert.Contains(t, out, "อีก 56 วัน")
	assert.Contains(t, out, testNow.AddDate(0, 0, 56).Format(FollowupDateLayout))
	assert.NotContains(t, out, "⚠️ มีการใช้สมุนไพร")
}

func TestRecommendDecreaseRangeIsAscending(t *testing.T) {
	out := Recommend(3.5, 40, models.BleedingNo, "", testNow)
	assert.Contains(t, out, "36.0–38.0 mg/สัปดาห์")
}

func TestRecommendSingleMultiplier(t *testing.T) {
	out := Recommend(4.5, 28, models.BleedingNo, "", testNow)
	assert.Contains(t, out, "หยุดยา 1 วัน")
	assert.Contains(t, out, "ขนาดยาใหม่: 25.2 mg/สัปดาห์")
}

func TestRecommendHoldRulesHaveNoDoseMath(t *testing.T) {
	for _, inr := range []float64{5.0, 7.2, 8.9, 9.0, 12} {
		out := Recommend(inr, 35, models.BleedingNo, "", testNow)
		assert.NotContains(t, out, "ขนาดยาใหม่", "inr %v", inr)
		assert.Contains(t, out, "Vitamin K1", "inr %v", inr)
	}
}

func TestRecommendBleedingShortCircuits(t *testing.T) {
	for _, inr := range []float64{0.5, 2.5, 4.2, 9.5} {
		for _, dose := range []float64{0, 17.5, 70} {
			out := Recommend(inr, dose, models.BleedingYes, "แปะก๊วย", testNow)
			require.Equal(t, EmergencyDirective, out)
		}
	}
	assert.NotContains(t, EmergencyDirective, "📅")
	assert.False(t, strings.ContainsAny(EmergencyDirective, "0123456789"))
}

func TestRecommendAppendsSupplementWarningBeforeFollowup(t *testing.T) {
	out := Recommend(2.5, 28, models.BleedingNo, "กินกระเทียมทุกวัน", testNow)

	warn := strings.Index(out, "กระเทียม")
	followup := strings.Index(out, "📅")
	require.NotEqual(t, -1, warn)
	require.NotEqual(t, -1, followup)
	assert.Less(t, warn, followup)
}

func TestRecommendNoFollowupRuleAtNine(t *testing.T) {
	out := Recommend(9.0, 35, models.BleedingNo, "", testNow)
	assert.Contains(t, out, "โปรดติดต่อแพทย์")
	assert.NotContains(t, out, "ตรวจ INR ซ้ำในอีก")
}
