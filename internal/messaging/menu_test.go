package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BTreeMap/WarfarinBot/internal/models"
	"github.com/BTreeMap/WarfarinBot/internal/warfarin"
)

func TestRenderMenuText(t *testing.T) {
	menu := warfarin.SupplementMenu()
	text := RenderMenuText(menu)

	assert.Contains(t, text, menu.AltText)
	assert.Contains(t, text, "\n1. "+warfarin.Catalog[0].Name)
	assert.Contains(t, text, "\n12. "+warfarin.OptionOther)
	assert.Contains(t, text, MenuFooter)
}

func TestRenderText(t *testing.T) {
	assert.Equal(t, "hi", RenderText(models.TextMessage("hi")))
	assert.Contains(t, RenderText(models.MenuMessage(warfarin.SupplementMenu())), "1. ")
}

func TestMenuMemory(t *testing.T) {
	m := newMenuMemory()
	menu := models.MenuMessage(warfarin.SupplementMenu())

	assert.Equal(t, "2", m.resolve("u", "2"), "no menu remembered yet")

	m.remember("u", []models.OutboundMessage{menu})
	assert.Equal(t, warfarin.Catalog[1].Name, m.resolve("u", " 2 "))
	assert.Equal(t, warfarin.OptionNoneUsed, m.resolve("u", "10"))
	assert.Equal(t, "13", m.resolve("u", "13"))
	assert.Equal(t, "0", m.resolve("u", "0"))
	assert.Equal(t, "ขิง", m.resolve("u", "ขิง"))
	assert.Equal(t, "2", m.resolve("other", "2"))

	m.remember("u", []models.OutboundMessage{models.TextMessage("next")})
	assert.Equal(t, "2", m.resolve("u", "2"), "text reply clears the menu")
}

func TestCanonicalizePhone(t *testing.T) {
	got, err := CanonicalizePhone("whatsapp:+66 81-234-5678")
	assert.NoError(t, err)
	assert.Equal(t, "66812345678", got)

	_, err = CanonicalizePhone("")
	assert.ErrorIs(t, err, models.ErrEmptyRecipient)
	_, err = CanonicalizePhone("abc")
	assert.Error(t, err)
	_, err = CanonicalizePhone("+123")
	assert.Error(t, err)
}
