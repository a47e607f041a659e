package messaging

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/BTreeMap/WarfarinBot/internal/models"
)

// MenuOptionFormat renders one numbered option in text-only transports.
const MenuOptionFormat = "\n%d. %s"

// MenuFooter tells the user how to answer a numbered menu.
const MenuFooter = "\n\nพิมพ์หมายเลขหรือชื่อรายการที่ต้องการ"

// RenderMenuText flattens a choice menu into a numbered list.
func RenderMenuText(menu models.ChoiceMenu) string {
	var b strings.Builder
	b.WriteString(menu.AltText)
	for i, opt := range menu.Options() {
		fmt.Fprintf(&b, MenuOptionFormat, i+1, opt.Label)
	}
	b.WriteString(MenuFooter)
	return b.String()
}

// RenderText returns the plain-text body of msg.
func RenderText(msg models.OutboundMessage) string {
	if msg.IsMenu() {
		return RenderMenuText(*msg.ChoiceMenu)
	}
	return msg.Text
}

// menuMemory remembers the last menu sent to each user of a text-only transport so a numeric
// reply can be mapped back to the option's text.
type menuMemory struct {
	mu   sync.Mutex
	last map[string][]models.ChoiceOption
}

func newMenuMemory() *menuMemory {
	return &menuMemory{last: make(map[string][]models.ChoiceOption)}
}

// remember records the menu in msgs, if any. Any other reply clears the user's entry.
func (m *menuMemory) remember(userID string, msgs []models.OutboundMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.last, userID)
	for _, msg := range msgs {
		if msg.IsMenu() {
			m.last[userID] = msg.ChoiceMenu.Options()
		}
	}
}

// resolve maps "1".."n" to the option text of the user's last menu. Other text is returned as is.
func (m *menuMemory) resolve(userID, text string) string {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return text
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	opts := m.last[userID]
	if n < 1 || n > len(opts) {
		return text
	}
	return opts[n-1].Text
}
