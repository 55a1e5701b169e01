package bot

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-telegram/bot/models"

	"flickrsearch/internal/domain"
)

const (
	favoritePrefix = "f|"
	viewPrefix     = "v|"

	// Telegram rejects callback data longer than this.
	maxCallbackData = 64

	maxButtonTitle = 40

	heartOn  = "♥"
	heartOff = "♡"
)

func favoriteData(photoID string) string {
	return favoritePrefix + photoID
}

// Format: v|{farm}|{server}|{id}|{secret}
func viewData(p domain.Photo) string {
	return strings.Join([]string{"v", strconv.Itoa(p.Farm), p.Server, p.ID, p.Secret}, "|")
}

func parseViewData(data string) (domain.Photo, error) {
	parts := strings.Split(data, "|")
	if len(parts) != 5 || parts[0] != "v" {
		return domain.Photo{}, fmt.Errorf("malformed view callback %q", data)
	}
	farm, err := strconv.Atoi(parts[1])
	if err != nil {
		return domain.Photo{}, fmt.Errorf("malformed farm in view callback %q: %w", data, err)
	}
	return domain.Photo{Farm: farm, Server: parts[2], ID: parts[3], Secret: parts[4]}, nil
}

func heart(favorite bool) string {
	if favorite {
		return heartOn
	}
	return heartOff
}

func buttonTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "(untitled)"
	}
	if utf8.RuneCountInString(title) <= maxButtonTitle {
		return title
	}
	runes := []rune(title)
	return string(runes[:maxButtonTitle-1]) + "…"
}

// resultsKeyboard renders one row per photo: a favorite toggle and, when the
// photo's location fits into callback data, a large-view button. Photos with
// no id, or an id too long for callback data, get no row; hidden counts them.
func resultsKeyboard(photos []domain.Photo, favorite func(domain.Photo) bool) (kb *models.InlineKeyboardMarkup, hidden int) {
	rows := make([][]models.InlineKeyboardButton, 0, len(photos))
	for _, p := range photos {
		fav := favoriteData(p.ID)
		if p.ID == "" || len(fav) > maxCallbackData {
			hidden++
			continue
		}
		row := []models.InlineKeyboardButton{
			{Text: heart(favorite(p)) + " " + buttonTitle(p.Title), CallbackData: fav},
		}
		if view := viewData(p); len(view) <= maxCallbackData {
			row = append(row, models.InlineKeyboardButton{Text: "🔍", CallbackData: view})
		}
		rows = append(rows, row)
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}, hidden
}
