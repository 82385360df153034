package relay

import (
	"encoding/json"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Update is the inbound webhook envelope. It embeds the library update and
// additionally captures the sender's is_premium flag, which postdates the
// Bot API revision the pinned library models.
type Update struct {
	tgbotapi.Update
	SenderPremium bool
}

func (u *Update) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &u.Update); err != nil {
		return err
	}

	var extra struct {
		Message struct {
			From struct {
				IsPremium bool `json:"is_premium"`
			} `json:"from"`
		} `json:"message"`
	}
	if err := json.Unmarshal(data, &extra); err == nil {
		u.SenderPremium = extra.Message.From.IsPremium
	}

	return nil
}
