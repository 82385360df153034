// Package relay implements the webhook dispatch state machine: the ordered
// gates every inbound update passes through, the admin command set, and the
// bidirectional relay between verified users and the administrator.
package relay

import (
	"errors"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	filerepo "github.com/yayitinyu/RelayCat/internal/repo/file"
	filtersvc "github.com/yayitinyu/RelayCat/internal/services/filter"
	"github.com/yayitinyu/RelayCat/internal/services/verification"
)

// Transport is the outbound send surface of the Telegram Bot API.
type Transport interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// UserSet is a persisted set of user ids (verified users, banned users).
type UserSet interface {
	Contains(id int64) (bool, error)
	Add(id int64) (bool, error)
	Remove(id int64) (bool, error)
	All() ([]int64, error)
}

// RouteStore maps admin-side message ids back to original senders.
type RouteStore interface {
	Put(adminMessageID int, userID int64, sourceMessageID int) error
	Get(adminMessageID int) (filerepo.RouteEntry, bool, error)
}

// WordList mutates the bad-word list on behalf of /badadd and /baddel.
type WordList interface {
	Add(entry string) (bool, error)
	Remove(entry string) (bool, error)
}

// Limiter gates non-admin traffic; true means reject.
type Limiter interface {
	Hit(userID int64) (bool, error)
}

type Config struct {
	AdminID           int64
	BotUsername       string
	AllowBotInitiated bool
	VerifyURL         string
	TokenTTL          time.Duration
	BadWordsFile      string
}

type Dependencies struct {
	Transport Transport
	Verified  UserSet
	Banned    UserSet
	Routes    RouteStore
	Words     WordList
	Limiter   Limiter
	Filter    *filtersvc.Service
	Tokens    *verification.Manager
	Logger    *zap.Logger
}

type Service struct {
	cfg      Config
	tg       Transport
	verified UserSet
	banned   UserSet
	routes   RouteStore
	words    WordList
	limiter  Limiter
	filter   *filtersvc.Service
	tokens   *verification.Manager
	log      *zap.Logger
}

func NewService(deps Dependencies, cfg Config) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		cfg:      cfg,
		tg:       deps.Transport,
		verified: deps.Verified,
		banned:   deps.Banned,
		routes:   deps.Routes,
		words:    deps.Words,
		limiter:  deps.Limiter,
		filter:   deps.Filter,
		tokens:   deps.Tokens,
		log:      log,
	}
}

var helpCommandRe = regexp.MustCompile(`(?i)^/help\b`)

// HandleUpdate runs one inbound update through the dispatch states in order.
// Every state either handles the update and returns or falls through to the
// next. Banned and rate-limited senders are dropped with no outbound call at
// all; anything visibly different would leak that state to a prober.
func (s *Service) HandleUpdate(upd Update) {
	msg := upd.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	if !msg.Chat.IsPrivate() || msg.Chat.ID != msg.From.ID {
		return
	}

	userID := msg.From.ID
	isAdmin := userID == s.cfg.AdminID

	if !isAdmin && msg.From.IsBot && !s.cfg.AllowBotInitiated {
		return
	}

	if !isAdmin {
		banned, err := s.banned.Contains(userID)
		if err != nil {
			s.log.Warn("banned set read failed", zap.Error(err))
		}
		if banned {
			s.log.Debug("ignoring banned sender", zap.Int64("user_id", userID))
			return
		}

		limited, err := s.limiter.Hit(userID)
		if err != nil {
			s.log.Warn("rate window update failed", zap.Error(err))
		}
		if limited {
			s.log.Debug("rate limited sender", zap.Int64("user_id", userID))
			return
		}
	}

	text := strings.TrimSpace(msg.Text)

	if isAdmin && strings.HasPrefix(text, "/") {
		if s.dispatchAdminCommand(msg, text) {
			return
		}
	}

	if !isAdmin && helpCommandRe.MatchString(text) {
		s.handleUserHelp(userID)
		return
	}

	if !isAdmin {
		composite := text + "\n" + strings.TrimSpace(msg.Caption)
		if s.filter.Matches(composite) {
			// never echo the matched term back
			s.reply(userID, "⚠️ Your message contains blocked content and was not delivered.")
			s.log.Debug("blocked by word filter", zap.Int64("user_id", userID))
			return
		}
	}

	if strings.HasPrefix(text, "/start") {
		s.handleStart(msg, isAdmin)
		return
	}

	if isAdmin && msg.ReplyToMessage != nil {
		s.relayAdminReply(msg)
		return
	}

	if !isAdmin && !s.isVerified(userID) {
		s.sendVerificationLink(userID, "👋 Hi! To keep spam out, please complete a one-time human verification first:")
		return
	}

	if !isAdmin {
		s.forwardToAdmin(msg, upd.SenderPremium)
		return
	}

	s.reply(s.cfg.AdminID, "📌 Reply to a forwarded message or its info card to send content back to that user.")
}

func (s *Service) handleStart(msg *tgbotapi.Message, isAdmin bool) {
	userID := msg.From.ID

	fields := strings.Fields(strings.TrimSpace(msg.Text))
	payload := ""
	if len(fields) > 1 {
		payload = fields[1]
	}

	if payload != "" {
		s.redeemSuccessToken(userID, payload, isAdmin)
		return
	}

	if isAdmin || s.isVerified(userID) {
		s.reply(userID, "Welcome! You can send messages directly.")
		return
	}
	s.sendVerificationLink(userID, "👋 Hi! Please complete a one-time human verification first:")
}

// redeemSuccessToken applies a /start payload. Only a matching, still-valid
// success token verifies the caller; the expired and invalid cases produce
// distinct user-facing errors.
func (s *Service) redeemSuccessToken(userID int64, payload string, isAdmin bool) {
	claims, err := s.tokens.Decode(payload)
	switch {
	case errors.Is(err, verification.ErrTokenExpired):
		s.reply(userID, "❌ Verification failed: the token has expired.")
		return
	case err != nil:
		s.reply(userID, "❌ Verification failed: the token is invalid.")
		return
	}

	if claims.Type != verification.TokenTypeSuccess || !claims.Verified || claims.UserID != userID {
		s.reply(userID, "❌ Verification failed: the token does not match.")
		return
	}

	if !isAdmin {
		if _, err := s.verified.Add(userID); err != nil {
			s.log.Warn("verified set write failed", zap.Error(err), zap.Int64("user_id", userID))
		}
	}
	s.reply(userID, "✅ Verification passed! You can now talk to the bot.")
}

func (s *Service) handleUserHelp(userID int64) {
	if s.isVerified(userID) {
		s.reply(userID, "🤖 Help\nSend me any message and I will forward it to the administrator; replies come back to you the same way.")
		return
	}
	s.sendVerificationLink(userID, "🤖 Help\nFirst-time users need a one-time human verification:")
}

func (s *Service) sendVerificationLink(userID int64, intro string) {
	token, _, err := s.tokens.IssueVerify(userID)
	if err != nil {
		s.log.Error("issue verify token failed", zap.Error(err), zap.Int64("user_id", userID))
		return
	}

	link := s.cfg.VerifyURL + "?token=" + url.QueryEscape(token)
	minutes := int(s.cfg.TokenTTL.Minutes())
	s.reply(userID, fmt.Sprintf("%s\n\n➡️ %s\n\nThe link stays valid for %d minutes.", intro, link, minutes))
}

// forwardToAdmin sends the verified user's message to the administrator as a
// forward plus an info-card reply, recording a route for each so replying to
// either reaches the sender.
func (s *Service) forwardToAdmin(msg *tgbotapi.Message, premium bool) {
	userID := msg.From.ID

	fwd, err := s.tg.Send(tgbotapi.NewForward(s.cfg.AdminID, userID, msg.MessageID))
	if err != nil {
		s.log.Warn("forward to admin failed", zap.Error(err), zap.Int64("user_id", userID))
		return
	}
	if err := s.routes.Put(fwd.MessageID, userID, msg.MessageID); err != nil {
		s.log.Warn("route save failed", zap.Error(err), zap.Int("admin_message_id", fwd.MessageID))
	}

	card := tgbotapi.NewMessage(s.cfg.AdminID, buildInfoCard(msg.From, premium))
	card.ParseMode = tgbotapi.ModeHTML
	card.ReplyToMessageID = fwd.MessageID
	card.DisableWebPagePreview = true

	cardMsg, err := s.tg.Send(card)
	if err != nil {
		s.log.Warn("info card send failed", zap.Error(err), zap.Int64("user_id", userID))
		return
	}
	if err := s.routes.Put(cardMsg.MessageID, userID, msg.MessageID); err != nil {
		s.log.Warn("route save failed", zap.Error(err), zap.Int("admin_message_id", cardMsg.MessageID))
	}
}

func (s *Service) relayAdminReply(msg *tgbotapi.Message) {
	route, ok, err := s.routes.Get(msg.ReplyToMessage.MessageID)
	if err != nil {
		s.log.Warn("route load failed", zap.Error(err))
	}
	if !ok {
		s.reply(s.cfg.AdminID, "⚠️ No route found. Reply to a forwarded message or its info card.")
		return
	}

	if !s.relayContent(route.UserID, msg, route.SourceMessageID) {
		s.reply(s.cfg.AdminID, "⚠️ This content type is not supported.")
	}
}

func (s *Service) isVerified(userID int64) bool {
	ok, err := s.verified.Contains(userID)
	if err != nil {
		s.log.Warn("verified set read failed", zap.Error(err))
	}
	return ok
}

func (s *Service) reply(chatID int64, text string) {
	if _, err := s.tg.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		s.log.Warn("send message failed", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

func buildInfoCard(from *tgbotapi.User, premium bool) string {
	username := "(none)"
	if from.UserName != "" {
		username = "@" + from.UserName
	}

	fullName := strings.TrimSpace(from.FirstName + " " + from.LastName)
	if fullName == "" {
		fullName = "(none)"
	}
	if premium {
		fullName += " ⭐️"
	}

	return "👤 <b>User info</b>\n" +
		fmt.Sprintf("ID: <code>%d</code>\n", from.ID) +
		fmt.Sprintf("Username: <b>%s</b>\n", html.EscapeString(username)) +
		fmt.Sprintf("Name: <b>%s</b>\n", html.EscapeString(fullName)) +
		"<i>Reply to this card or the forwarded message above to answer.</i>"
}
