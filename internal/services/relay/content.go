package relay

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

var replyNotFoundRe = regexp.MustCompile(`(?i)reply.*message.*not.*found`)

// relayContent re-sends the admin's reply to the routed user, preserving the
// content type. When the original user message is gone and Telegram rejects
// the reply reference, the send is retried once without it. A final failure
// is reported to the admin with the target user id and the API description.
// Returns false only for content types that cannot be re-sent at all.
func (s *Service) relayContent(toUserID int64, msg *tgbotapi.Message, replyToMessageID int) bool {
	out, ok := buildRelayMessage(toUserID, msg, replyToMessageID, false)
	if !ok {
		return false
	}

	_, err := s.tg.Send(out)
	if err == nil {
		return true
	}

	desc := errorDescription(err)
	if replyNotFoundRe.MatchString(desc) {
		retry, _ := buildRelayMessage(toUserID, msg, 0, true)
		_, retryErr := s.tg.Send(retry)
		if retryErr == nil {
			s.reply(s.cfg.AdminID, "ℹ️ The original message is gone; sent without the reply reference.")
			return true
		}
		err = retryErr
		desc = errorDescription(retryErr)
	}

	s.log.Warn("relay to user failed", zap.Error(err), zap.Int64("user_id", toUserID))

	notice := fmt.Sprintf("❗️ Delivery to user %d failed: %s", toUserID, desc)
	if strings.Contains(desc, "bot was blocked by the user") {
		notice += "\nThe user has blocked the bot."
	}
	s.reply(s.cfg.AdminID, notice)
	return true
}

// buildRelayMessage maps the admin's message onto an outbound send for the
// target chat. The second return is false for content types the Bot API
// cannot re-send from file ids.
func buildRelayMessage(chatID int64, msg *tgbotapi.Message, replyTo int, allowWithoutReply bool) (tgbotapi.Chattable, bool) {
	base := tgbotapi.BaseChat{
		ChatID:                   chatID,
		ReplyToMessageID:         replyTo,
		AllowSendingWithoutReply: allowWithoutReply,
	}

	switch {
	case msg.Text != "":
		out := tgbotapi.MessageConfig{
			BaseChat: base,
			Text:     msg.Text,
			Entities: msg.Entities,
		}
		return out, true
	case len(msg.Photo) > 0:
		largest := msg.Photo[len(msg.Photo)-1]
		out := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(largest.FileID))
		out.BaseChat = base
		out.Caption = msg.Caption
		out.CaptionEntities = msg.CaptionEntities
		return out, true
	case msg.Document != nil:
		out := tgbotapi.NewDocument(chatID, tgbotapi.FileID(msg.Document.FileID))
		out.BaseChat = base
		out.Caption = msg.Caption
		out.CaptionEntities = msg.CaptionEntities
		return out, true
	case msg.Video != nil:
		out := tgbotapi.NewVideo(chatID, tgbotapi.FileID(msg.Video.FileID))
		out.BaseChat = base
		out.Caption = msg.Caption
		out.CaptionEntities = msg.CaptionEntities
		return out, true
	case msg.Audio != nil:
		out := tgbotapi.NewAudio(chatID, tgbotapi.FileID(msg.Audio.FileID))
		out.BaseChat = base
		out.Caption = msg.Caption
		out.CaptionEntities = msg.CaptionEntities
		return out, true
	case msg.Voice != nil:
		out := tgbotapi.NewVoice(chatID, tgbotapi.FileID(msg.Voice.FileID))
		out.BaseChat = base
		out.Caption = msg.Caption
		out.CaptionEntities = msg.CaptionEntities
		return out, true
	case msg.Animation != nil:
		out := tgbotapi.NewAnimation(chatID, tgbotapi.FileID(msg.Animation.FileID))
		out.BaseChat = base
		out.Caption = msg.Caption
		out.CaptionEntities = msg.CaptionEntities
		return out, true
	case msg.Sticker != nil:
		out := tgbotapi.NewSticker(chatID, tgbotapi.FileID(msg.Sticker.FileID))
		out.BaseChat = base
		return out, true
	case msg.VideoNote != nil:
		out := tgbotapi.NewVideoNote(chatID, msg.VideoNote.Length, tgbotapi.FileID(msg.VideoNote.FileID))
		out.BaseChat = base
		return out, true
	case msg.Contact != nil:
		out := tgbotapi.NewContact(chatID, msg.Contact.PhoneNumber, msg.Contact.FirstName)
		out.BaseChat = base
		out.LastName = msg.Contact.LastName
		out.VCard = msg.Contact.VCard
		return out, true
	case msg.Venue != nil:
		out := tgbotapi.NewVenue(chatID, msg.Venue.Title, msg.Venue.Address,
			msg.Venue.Location.Latitude, msg.Venue.Location.Longitude)
		out.BaseChat = base
		return out, true
	case msg.Location != nil:
		out := tgbotapi.NewLocation(chatID, msg.Location.Latitude, msg.Location.Longitude)
		out.BaseChat = base
		return out, true
	case msg.Dice != nil:
		out := tgbotapi.NewDiceWithEmoji(chatID, msg.Dice.Emoji)
		out.BaseChat = base
		return out, true
	}
	return nil, false
}

func errorDescription(err error) string {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
