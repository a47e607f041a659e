package warfarin

import (
	"strings"

	"github.com/BTreeMap/WarfarinBot/internal/models"
)

// RiskCategory classifies how a supplement interacts with warfarin.
type RiskCategory string

const (
	// RiskBleeding marks supplements that potentiate warfarin and raise bleeding risk.
	RiskBleeding RiskCategory = "increases_bleeding"
	// RiskReducedEffect marks supplements that lower INR and weaken the anticoagulant effect.
	RiskReducedEffect RiskCategory = "reduces_effect"
)

// Supplement is one catalog entry, keyed by its Thai display name.
type Supplement struct {
	Name string
	Risk RiskCategory
}

// Catalog lists the known interacting herbs and supplements in display order.
var Catalog = []Supplement{
	{Name: "แปะก๊วย", Risk: RiskBleeding},
	{Name: "กระเทียม", Risk: RiskBleeding},
	{Name: "ขิง", Risk: RiskBleeding},
	{Name: "ขมิ้นชัน", Risk: RiskBleeding},
	{Name: "น้ำมันปลา", Risk: RiskBleeding},
	{Name: "ตังกุย", Risk: RiskBleeding},
	{Name: "วิตามินอี", Risk: RiskBleeding},
	{Name: "โสม", Risk: RiskReducedEffect},
	{Name: "ชาเขียว", Risk: RiskReducedEffect},
}

// Menu answers that are not catalog names.
const (
	OptionNoneUsed = "ไม่ได้ใช้"
	OptionMultiple = "ใช้หลายชนิด"
	OptionOther    = "อื่นๆ"
)

// MatchSupplements returns the catalog entries that occur as substrings of text, in catalog order.
// Matching is case-sensitive.
func MatchSupplements(text string) []Supplement {
	var matched []Supplement
	for _, s := range Catalog {
		if strings.Contains(text, s.Name) {
			matched = append(matched, s)
		}
	}
	return matched
}

// DetectRisk returns the interaction warning for free-text supplement input, or "" when the
// input is empty.
func DetectRisk(freeText string) string {
	text := strings.TrimSpace(freeText)
	if text == "" {
		return ""
	}

	matched := MatchSupplements(text)
	if len(matched) == 0 {
		return "⚠️ มีการใช้สมุนไพร/อาหารเสริม (ไม่ทราบระดับความเสี่ยง)\n" +
			"โปรดแจ้งแพทย์หรือเภสัชกรทุกครั้งที่ใช้ร่วมกับวาร์ฟาริน"
	}

	names := make([]string, 0, len(matched))
	for _, s := range matched {
		names = append(names, s.Name)
	}
	return "⚠️ พบสมุนไพร/อาหารเสริมที่มีปฏิกิริยากับวาร์ฟาริน: " + strings.Join(names, ", ") + "\n" +
		"อาจทำให้ค่า INR เปลี่ยนแปลง โปรดหลีกเลี่ยงหรือปรึกษาเภสัชกรก่อนใช้ร่วมกับยา"
}

// optionsPerPage matches the LINE carousel limit of three actions per column.
const optionsPerPage = 3

// SupplementMenu builds the choice menu asked after the bleeding question: every catalog name,
// then "none used", "multiple" and "other".
func SupplementMenu() models.ChoiceMenu {
	labels := make([]string, 0, len(Catalog)+3)
	for _, s := range Catalog {
		labels = append(labels, s.Name)
	}
	labels = append(labels, OptionNoneUsed, OptionMultiple, OptionOther)

	menu := models.ChoiceMenu{AltText: "คุณใช้สมุนไพรหรืออาหารเสริมชนิดใดบ้าง?"}
	for start := 0; start < len(labels); start += optionsPerPage {
		end := min(start+optionsPerPage, len(labels))
		page := models.ChoicePage{
			Title: "สมุนไพร/อาหารเสริม",
			Text:  "เลือกรายการที่ใช้อยู่",
		}
		for _, l := range labels[start:end] {
			page.Options = append(page.Options, models.ChoiceOption{Label: l, Text: l})
		}
		menu.Pages = append(menu.Pages, page)
	}
	return menu
}

// IsFreeTextOption reports whether choice asks for a typed list of supplements.
func IsFreeTextOption(choice string) bool {
	return choice == OptionMultiple || choice == OptionOther
}
