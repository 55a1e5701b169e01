package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"flickrsearch/internal/config"
	"flickrsearch/internal/domain"
	"flickrsearch/internal/flickr"
	"flickrsearch/internal/storage"
)

const welcomeMessage = "Welcome! Send /search <term> to find photos on Flickr, tap ♡ to keep a favorite, 🔍 to see it large, and /favorites to list what you kept."

// Handler holds dependencies for the Telegram bot handlers.
type Handler struct {
	bot       *tgbot.Bot
	cfg       config.Config
	searcher  flickr.Searcher
	favorites storage.FavoriteStore
	log       logrus.FieldLogger
}

// NewHandler creates a new bot handler instance.
// Extra options are passed to the underlying bot (tests point it at a fake API server).
func NewHandler(cfg config.Config, searcher flickr.Searcher, favorites storage.FavoriteStore, logger logrus.FieldLogger, opts ...tgbot.Option) (*Handler, error) {
	log := logger.WithField("component", "bot_handler")

	if cfg.TelegramBotToken == "" {
		return nil, errors.New("TELEGRAM_BOT_TOKEN is not set")
	}

	h := &Handler{
		cfg:       cfg,
		searcher:  searcher,
		favorites: favorites,
		log:       log,
	}

	opts = append([]tgbot.Option{tgbot.WithDefaultHandler(h.defaultHandler)}, opts...)
	b, err := tgbot.New(cfg.TelegramBotToken, opts...)
	if err != nil {
		log.WithError(err).Error("Failed to create Telegram bot instance")
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	h.bot = b

	h.registerHandlers()

	log.Info("Telegram bot handler initialized")
	return h, nil
}

// registerHandlers sets up the command and callback handlers.
func (h *Handler) registerHandlers() {
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/start", tgbot.MatchTypeExact, h.startHandler)
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/search", tgbot.MatchTypePrefix, h.searchHandler)
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/favorites", tgbot.MatchTypeExact, h.favoritesHandler)
	h.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, favoritePrefix, tgbot.MatchTypePrefix, h.favoriteCallback)
	h.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, viewPrefix, tgbot.MatchTypePrefix, h.viewCallback)
	h.log.Info("Registered command and callback handlers")
}

// Start begins polling for updates from Telegram.
// This function blocks until the context is cancelled.
func (h *Handler) Start(ctx context.Context) {
	h.log.Info("Starting Telegram bot polling...")
	h.bot.Start(ctx)
	h.log.Info("Telegram bot polling stopped.")
}

// startHandler handles the /start command.
func (h *Handler) startHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	log := h.log.WithFields(logrus.Fields{
		"chat_id": update.Message.Chat.ID,
		"command": "/start",
	})
	log.Info("Received /start command")

	h.reply(ctx, b, update.Message.Chat.ID, welcomeMessage, nil)
}

// searchHandler handles "/search <term>".
func (h *Handler) searchHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID
	term := searchTerm(update.Message.Text)
	log := h.log.WithFields(logrus.Fields{
		"chat_id": chatID,
		"command": "/search",
		"term":    term,
	})

	if term == "" {
		h.reply(ctx, b, chatID, "Usage: /search <term>", nil)
		return
	}

	result, err := h.searcher.Search(ctx, term)
	if err != nil {
		log.WithError(err).Warn("Search failed")
		h.reply(ctx, b, chatID, searchFailureText(err), nil)
		return
	}

	if len(result.Photos) == 0 {
		h.reply(ctx, b, chatID, result.Title()+"\nNo photos found.", nil)
		return
	}

	keyboard, hidden := resultsKeyboard(result.Photos, func(p domain.Photo) bool {
		fav, err := h.favorites.IsFavorite(ctx, p.ID)
		if err != nil {
			log.WithError(err).WithField("photo_id", p.ID).Warn("Could not read favorite, showing as not favorite")
			return false
		}
		return fav
	})
	text := result.Title()
	if hidden > 0 {
		log.WithField("hidden_count", hidden).Warn("Photos without a usable id left out of the keyboard")
		text += fmt.Sprintf("\n%d not shown: missing or oversized photo id.", hidden)
	}
	h.reply(ctx, b, chatID, text, keyboard)
	log.WithField("photo_count", len(result.Photos)).Info("Search results sent")
}

// favoritesHandler lists the ids of favorite photos.
func (h *Handler) favoritesHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID
	ids, err := h.favorites.ListFavorites(ctx)
	if err != nil {
		h.log.WithError(err).Error("Failed to list favorites")
		h.reply(ctx, b, chatID, "Could not load favorites, please try again.", nil)
		return
	}
	if len(ids) == 0 {
		h.reply(ctx, b, chatID, "No favorites yet.", nil)
		return
	}
	h.reply(ctx, b, chatID, fmt.Sprintf("Favorites (%d):\n%s", len(ids), strings.Join(ids, "\n")), nil)
}

// favoriteCallback toggles the favorite flag behind a ♡/♥ button.
func (h *Handler) favoriteCallback(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	query := update.CallbackQuery
	photoID := strings.TrimPrefix(query.Data, favoritePrefix)
	log := h.log.WithFields(logrus.Fields{
		"user_id":  query.From.ID,
		"photo_id": photoID,
	})

	if photoID == "" {
		log.Warn("Favorite callback without photo id")
		h.answer(ctx, b, query.ID, "Unknown photo.")
		return
	}

	fav, err := h.favorites.ToggleFavorite(ctx, photoID)
	if err != nil {
		log.WithError(err).Error("Failed to toggle favorite")
		h.answer(ctx, b, query.ID, "Could not update favorite.")
		return
	}

	if fav {
		h.answer(ctx, b, query.ID, heartOn+" Added to favorites")
	} else {
		h.answer(ctx, b, query.ID, heartOff+" Removed from favorites")
	}
	log.WithField("favorite", fav).Info("Favorite toggled from bot")
}

// viewCallback fetches the large rendition of a photo and uploads it.
func (h *Handler) viewCallback(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	query := update.CallbackQuery
	log := h.log.WithField("user_id", query.From.ID)

	photo, err := parseViewData(query.Data)
	if err != nil {
		log.WithError(err).Warn("Ignoring malformed view callback")
		h.answer(ctx, b, query.ID, "Unknown photo.")
		return
	}
	log = log.WithField("photo_id", photo.ID)

	img, err := h.searcher.FetchImage(ctx, photo, domain.Large)
	if err != nil {
		log.WithError(err).Warn("Failed to fetch large image")
		h.answer(ctx, b, query.ID, "Could not load the image.")
		return
	}
	if img == nil {
		h.answer(ctx, b, query.ID, "Nothing to display.")
		return
	}

	_, err = b.SendPhoto(ctx, &tgbot.SendPhotoParams{
		ChatID: callbackChatID(query),
		Photo: &models.InputFileUpload{
			Filename: photo.ID + "." + img.Format,
			Data:     bytes.NewReader(img.Data),
		},
		Caption: photo.ImageURL(domain.Large),
	})
	if err != nil {
		log.WithError(err).Error("Failed to send photo")
		h.answer(ctx, b, query.ID, "Could not send the image.")
		return
	}
	h.answer(ctx, b, query.ID, "")
}

func (h *Handler) defaultHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.log.WithFields(logrus.Fields{
		"chat_id": update.Message.Chat.ID,
		"text":    update.Message.Text,
	}).Debug("Received unhandled message (default handler)")
	h.reply(ctx, b, update.Message.Chat.ID, "Send /search <term> to look for photos.", nil)
}

func (h *Handler) reply(ctx context.Context, b *tgbot.Bot, chatID int64, text string, markup *models.InlineKeyboardMarkup) {
	params := &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	if _, err := b.SendMessage(ctx, params); err != nil {
		h.log.WithError(err).WithField("chat_id", chatID).Error("Failed to send message")
	}
}

func (h *Handler) answer(ctx context.Context, b *tgbot.Bot, queryID, text string) {
	_, err := b.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: queryID,
		Text:            text,
	})
	if err != nil {
		h.log.WithError(err).Error("Failed to answer callback query")
	}
}

// searchTerm extracts the term from "/search term" or "/search@BotName term".
func searchTerm(text string) string {
	rest := strings.TrimPrefix(strings.TrimSpace(text), "/search")
	if strings.HasPrefix(rest, "@") {
		i := strings.IndexFunc(rest, func(r rune) bool { return r == ' ' || r == '\n' || r == '\t' })
		if i < 0 {
			return ""
		}
		rest = rest[i:]
	}
	return strings.TrimSpace(rest)
}

func searchFailureText(err error) string {
	var apiErr *flickr.APIError
	var transportErr *flickr.TransportError
	var decodeErr *flickr.DecodeError
	switch {
	case errors.As(err, &apiErr):
		if apiErr.Message == "" {
			return "Flickr rejected the search."
		}
		return "Flickr rejected the search: " + apiErr.Message
	case errors.As(err, &transportErr):
		return "Could not reach Flickr, please try again."
	case errors.As(err, &decodeErr):
		return "Flickr sent a response I could not read."
	default:
		return "Search failed."
	}
}

func callbackChatID(query *models.CallbackQuery) int64 {
	if query.Message.Message != nil {
		return query.Message.Message.Chat.ID
	}
	return query.From.ID
}
