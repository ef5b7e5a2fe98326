package telegram

import (
	"context"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"schedbot/internal/orchestrator"
)

// Bot bridges Telegram updates to the turn pipeline. Each incoming text
// message becomes one orchestrator turn; the bot itself keeps no
// conversation state.
type Bot struct {
	api             *tgbotapi.BotAPI
	send            sender
	turns           *orchestrator.Orchestrator
	businessAddress string
}

func New(botToken, businessAddress string, turns *orchestrator.Orchestrator) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	return &Bot{
		api:             api,
		send:            botAPISender{api: api},
		turns:           turns,
		businessAddress: businessAddress,
	}, nil
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				b.handleIncomingMessage(ctx, update.Message)
			}
		}
	}
}

func (b *Bot) handleIncomingMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	log.Printf("Incoming message from %d (@%s): %q", msg.From.ID, msg.From.UserName, text)

	reply, err := b.turns.Turn(ctx, orchestrator.Inbound{
		From: senderAddress(msg),
		To:   b.businessAddress,
		Text: text,
	})
	if err != nil {
		log.Printf("❌ turn failed for %d: %v", msg.From.ID, err)
		b.sendText(msg.Chat.ID, "Sorry, something went wrong. Please try again in a moment.")
		return
	}
	if reply.Empty {
		return
	}
	b.sendText(msg.Chat.ID, reply.Text)
}

// senderAddress prefers the shared contact phone; without one the
// Telegram user id stands in as a stable address.
func senderAddress(msg *tgbotapi.Message) string {
	if msg.Contact != nil && msg.Contact.PhoneNumber != "" {
		return msg.Contact.PhoneNumber
	}
	return fmt.Sprintf("tg:%d", msg.From.ID)
}

func (b *Bot) sendText(chatID int64, text string) {
	out := tgbotapi.NewMessage(chatID, text)
	if _, err := b.send.Send(out); err != nil {
		log.Printf("failed to send message: %v", err)
	}
}

// Notify sends a free-form message to a chat, used by the reminder
// scheduler. The address must be a "tg:<id>" one; phone-only sessions
// cannot be reached through the bot API.
func (b *Bot) Notify(address, text string) error {
	var chatID int64
	if _, err := fmt.Sscanf(address, "tg:%d", &chatID); err != nil {
		return fmt.Errorf("cannot notify address %q: %w", address, err)
	}
	if _, err := b.send.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return err
	}
	return nil
}
