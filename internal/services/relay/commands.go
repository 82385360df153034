package relay

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const banlistDisplayCap = 500

var (
	commandRe = regexp.MustCompile(`^/(\w+)`)
	userIDRe  = regexp.MustCompile(`^\d+$`)
)

const adminHelpText = "🛠 <b>Admin commands</b>\n" +
	"/ban &lt;id&gt; - ban a user (or reply to a forwarded message)\n" +
	"/unban &lt;id&gt; - lift a ban\n" +
	"/allow &lt;id&gt; - mark a user verified without CAPTCHA\n" +
	"/banlist - list banned user ids\n" +
	"/badadd &lt;entry&gt; - add a bad-word entry\n" +
	"/baddel &lt;entry&gt; - remove a bad-word entry\n\n" +
	"Reply to a forwarded message or its info card to answer that user."

// dispatchAdminCommand handles the admin command set. It reports whether the
// text was recognized as a command; unrecognized slash commands fall through
// so the admin can still relay text that merely starts with a slash.
func (s *Service) dispatchAdminCommand(msg *tgbotapi.Message, text string) bool {
	m := commandRe.FindStringSubmatch(text)
	if m == nil {
		return false
	}
	cmd := strings.ToLower(m[1])
	arg := strings.TrimSpace(text[len(m[0]):])

	switch cmd {
	case "help":
		s.replyHTML(s.cfg.AdminID, adminHelpText)
	case "ban":
		s.moderateUser(msg, arg, s.banned, "ban",
			"🚫 User <code>%d</code> is now banned.",
			"User <code>%d</code> was already banned.")
	case "unban":
		s.moderateUserRemove(msg, arg, s.banned, "unban",
			"✅ User <code>%d</code> is no longer banned.",
			"User <code>%d</code> was not banned.")
	case "allow":
		s.moderateUser(msg, arg, s.verified, "allow",
			"✅ User <code>%d</code> is now verified.",
			"User <code>%d</code> was already verified.")
	case "banlist":
		s.sendBanlist()
	case "badadd":
		s.addBadWord(arg)
	case "baddel":
		s.removeBadWord(arg)
	default:
		return false
	}
	return true
}

// resolveTargetID picks the target of a moderation command: an explicit
// numeric argument wins, otherwise the route behind the replied-to message.
func (s *Service) resolveTargetID(msg *tgbotapi.Message, arg string) (int64, bool) {
	if userIDRe.MatchString(arg) {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err == nil && id > 0 {
			return id, true
		}
	}
	if msg.ReplyToMessage != nil {
		route, ok, err := s.routes.Get(msg.ReplyToMessage.MessageID)
		if err != nil {
			s.log.Warn("route load failed", zap.Error(err))
		}
		if ok {
			return route.UserID, true
		}
	}
	return 0, false
}

func (s *Service) moderateUser(msg *tgbotapi.Message, arg string, set UserSet, name, changedFmt, unchangedFmt string) {
	id, ok := s.resolveTargetID(msg, arg)
	if !ok {
		s.replyHTML(s.cfg.AdminID, fmt.Sprintf("Usage: /%s &lt;user id&gt; - or reply to a forwarded message.", name))
		return
	}

	changed, err := set.Add(id)
	if err != nil {
		s.log.Warn("user set write failed", zap.Error(err), zap.String("command", name))
		s.reply(s.cfg.AdminID, "⚠️ Could not update the user list.")
		return
	}
	if changed {
		s.replyHTML(s.cfg.AdminID, fmt.Sprintf(changedFmt, id))
	} else {
		s.replyHTML(s.cfg.AdminID, fmt.Sprintf(unchangedFmt, id))
	}
}

func (s *Service) moderateUserRemove(msg *tgbotapi.Message, arg string, set UserSet, name, changedFmt, unchangedFmt string) {
	id, ok := s.resolveTargetID(msg, arg)
	if !ok {
		s.replyHTML(s.cfg.AdminID, fmt.Sprintf("Usage: /%s &lt;user id&gt; - or reply to a forwarded message.", name))
		return
	}

	changed, err := set.Remove(id)
	if err != nil {
		s.log.Warn("user set write failed", zap.Error(err), zap.String("command", name))
		s.reply(s.cfg.AdminID, "⚠️ Could not update the user list.")
		return
	}
	if changed {
		s.replyHTML(s.cfg.AdminID, fmt.Sprintf(changedFmt, id))
	} else {
		s.replyHTML(s.cfg.AdminID, fmt.Sprintf(unchangedFmt, id))
	}
}

func (s *Service) sendBanlist() {
	ids, err := s.banned.All()
	if err != nil {
		s.log.Warn("banned set read failed", zap.Error(err))
		s.reply(s.cfg.AdminID, "⚠️ Could not read the ban list.")
		return
	}
	if len(ids) == 0 {
		s.reply(s.cfg.AdminID, "The ban list is empty.")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🚫 <b>Banned users (%d)</b>\n", len(ids))
	shown := ids
	if len(shown) > banlistDisplayCap {
		shown = shown[:banlistDisplayCap]
	}
	for _, id := range shown {
		fmt.Fprintf(&b, "<code>%d</code>\n", id)
	}
	if len(ids) > banlistDisplayCap {
		fmt.Fprintf(&b, "… and %d more", len(ids)-banlistDisplayCap)
	}
	s.replyHTML(s.cfg.AdminID, b.String())
}

func (s *Service) addBadWord(arg string) {
	if arg == "" {
		s.replyHTML(s.cfg.AdminID, "Usage: /badadd &lt;entry&gt;\nEntries live in <code>"+html.EscapeString(s.cfg.BadWordsFile)+"</code>, one per line.")
		return
	}
	changed, err := s.words.Add(arg)
	if err != nil {
		s.log.Warn("bad word add failed", zap.Error(err))
	}
	if err != nil || !changed {
		s.reply(s.cfg.AdminID, "⚠️ Entry already exists or could not be written.")
		return
	}
	s.replyHTML(s.cfg.AdminID, "✅ Added <code>"+html.EscapeString(arg)+"</code> to the bad-word list.")
}

func (s *Service) removeBadWord(arg string) {
	if arg == "" {
		s.replyHTML(s.cfg.AdminID, "Usage: /baddel &lt;entry&gt;\nEntries live in <code>"+html.EscapeString(s.cfg.BadWordsFile)+"</code>, one per line.")
		return
	}
	changed, err := s.words.Remove(arg)
	if err != nil {
		s.log.Warn("bad word remove failed", zap.Error(err))
	}
	if err != nil || !changed {
		s.reply(s.cfg.AdminID, "⚠️ Entry not found or could not be removed.")
		return
	}
	s.replyHTML(s.cfg.AdminID, "✅ Removed <code>"+html.EscapeString(arg)+"</code> from the bad-word list.")
}

func (s *Service) replyHTML(chatID int64, text string) {
	m := tgbotapi.NewMessage(chatID, text)
	m.ParseMode = tgbotapi.ModeHTML
	m.DisableWebPagePreview = true
	if _, err := s.tg.Send(m); err != nil {
		s.log.Warn("send message failed", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}
