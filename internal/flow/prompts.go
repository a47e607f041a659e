package flow

import "strings"

// Prompts sent by the warfarin flow.
const (
	PromptINR            = "🩸 กรุณาพิมพ์ค่า INR ล่าสุด (เช่น 2.5)"
	PromptTWD            = "💊 กรุณาพิมพ์ขนาดยาวาร์ฟารินรวมต่อสัปดาห์ หน่วย mg (เช่น 28)"
	PromptBleeding       = "🩹 มีภาวะเลือดออกผิดปกติหรือไม่? (พิมพ์ yes หรือ no)"
	PromptSupplementText = "📝 กรุณาพิมพ์ชื่อสมุนไพรหรืออาหารเสริมที่ใช้ทั้งหมด คั่นด้วยเครื่องหมายจุลภาค (,)"

	ErrorPromptINR      = "❌ ค่า INR ต้องเป็นตัวเลข เช่น 2.5 กรุณาพิมพ์ใหม่อีกครั้ง"
	ErrorPromptTWD      = "❌ ขนาดยาต้องเป็นตัวเลข เช่น 28 กรุณาพิมพ์ใหม่อีกครั้ง"
	ErrorPromptBleeding = "❌ กรุณาตอบ yes หรือ no เท่านั้น"

	// ErrorPromptInternal is sent when the session store cannot be reached.
	ErrorPromptInternal = "⚠️ ระบบขัดข้องชั่วคราว กรุณาลองใหม่อีกครั้ง"
)

// DefaultTriggers start (or restart) the warfarin flow.
var DefaultTriggers = []string{"warfarin", "วาร์ฟาริน"}

// HelpText lists the phrases that start a flow.
func HelpText(triggers []string) string {
	var b strings.Builder
	b.WriteString("👋 พิมพ์คำสั่งต่อไปนี้เพื่อเริ่มใช้งาน:")
	for _, t := range triggers {
		b.WriteString("\n• ")
		b.WriteString(t)
		b.WriteString(" – ประเมินการปรับขนาดยาวาร์ฟาริน")
	}
	return b.String()
}
