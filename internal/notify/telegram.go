// Package notify sends auction event notifications via the Telegram Bot
// API. The watcher calls it when the tracked account is outbid, when the
// first bid lands, when the auction ends, and when poll cycles fail
// repeatedly.
//
// Messages use MarkdownV2 and delivery retries with a linear backoff.
package notify

import (
	"fmt"
	"math/big"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sender is the part of the bot API the client uses. *tgbotapi.BotAPI
// satisfies it; tests substitute a recorder.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications for auction events.
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration

	formatEther func(*big.Int) string
}

// NewClient creates a Telegram client. formatEther renders wei amounts for
// display; the bid engine's formatter is passed in so amounts match the UI.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration, formatEther func(*big.Int) string) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		formatEther:    formatEther,
	}, nil
}

// Outbid reports that someone has overtaken the tracked account.
func (c *Client) Outbid(newBid *big.Int, newBidderFID uint64, nextMinimum *big.Int) error {
	message := "*You've been outbid\\!*\n\n"
	message += fmt.Sprintf("New highest bid: *%s ETH*\n", escapeMarkdownV2(c.formatEther(newBid)))
	if newBidderFID != 0 {
		message += fmt.Sprintf("Leader: FID %d\n", newBidderFID)
	}
	message += fmt.Sprintf("Minimum to retake: *%s ETH*\n", escapeMarkdownV2(c.formatEther(nextMinimum)))
	return c.send(message)
}

// FirstBid reports the auction's opening bid.
func (c *Client) FirstBid(bid *big.Int, bidderFID uint64) error {
	message := "*Auction is live \\- first bid placed*\n\n"
	message += fmt.Sprintf("Opening bid: *%s ETH*\n", escapeMarkdownV2(c.formatEther(bid)))
	if bidderFID != 0 {
		message += fmt.Sprintf("Bidder: FID %d\n", bidderFID)
	}
	return c.send(message)
}

// Ended reports the final auction outcome.
func (c *Client) Ended(finalBid *big.Int, winnerFID uint64, hadBids bool) error {
	message := "*Auction ended*\n\n"
	if !hadBids {
		message += "No bids were placed\\."
		return c.send(message)
	}
	message += fmt.Sprintf("Winning bid: *%s ETH*\n", escapeMarkdownV2(c.formatEther(finalBid)))
	if winnerFID != 0 {
		message += fmt.Sprintf("Winner: FID %d\n", winnerFID)
	}
	return c.send(message)
}

// CycleFailure reports consecutive poll failures.
func (c *Client) CycleFailure(consecutive int, lastErr error) error {
	message := "*Auction watcher degraded*\n\n"
	message += fmt.Sprintf("Consecutive failed cycles: %d\n", consecutive)
	message += fmt.Sprintf("Last error: %s\n", escapeMarkdownV2(lastErr.Error()))
	return c.send(message)
}

// Recovered reports that polling succeeded again after failures.
func (c *Client) Recovered(afterFailures int) error {
	message := "*Auction watcher recovered*\n\n"
	message += fmt.Sprintf("Polling resumed after %d failed cycles\\.", afterFailures)
	return c.send(message)
}

// send delivers one message with retry.
func (c *Client) send(message string) error {
	msg := tgbotapi.NewMessage(c.chatID, message)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	result := ""
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			result += "\\" + string(char)
		default:
			result += string(char)
		}
	}
	return result
}
