package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/storefront/internal/models"
)

const telegramAPI = "https://api.telegram.org"

// TelegramService handles sending notifications to Telegram.
type TelegramService struct {
	botToken    string
	adminChatID string
	baseURL     string
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string, logger *slog.Logger) *TelegramService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		baseURL:     telegramAPI,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		logger:      logger,
	}
}

// Enabled reports whether both the bot token and admin chat are configured.
func (s *TelegramService) Enabled() bool {
	return s.botToken != "" && s.adminChatID != ""
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to specified chat.
func (s *TelegramService) SendMessage(ctx context.Context, chatID, text string) error {
	if s.botToken == "" {
		s.logger.Debug("telegram bot token not configured")
		return nil
	}

	body, err := json.Marshal(telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}
	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(ctx context.Context, text string) error {
	if s.adminChatID == "" {
		s.logger.Debug("telegram admin chat not configured")
		return nil
	}
	return s.SendMessage(ctx, s.adminChatID, text)
}

// FormatPrice renders amount with two decimals and thousand separators.
func FormatPrice(amount decimal.Decimal) string {
	fixed := amount.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var result strings.Builder
	if amount.IsNegative() {
		result.WriteByte('-')
	}
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(digit)
	}
	result.WriteByte('.')
	result.WriteString(frac)
	return result.String()
}

// NotifyNewOrder posts a summary of a new order to the admin chat.
func (s *TelegramService) NotifyNewOrder(ctx context.Context, order *models.Order) error {
	if s.adminChatID == "" {
		return nil
	}
	return s.SendToAdmin(ctx, formatOrderMessage(order))
}

func formatOrderMessage(order *models.Order) string {
	var items strings.Builder
	for i, item := range order.Items {
		fmt.Fprintf(&items, "%d. <b>%s</b>\n   %d x %s = %s\n",
			i+1,
			html.EscapeString(item.Name),
			item.Quantity,
			FormatPrice(item.Price),
			FormatPrice(item.ItemTotal),
		)
	}

	customer := "registered customer"
	if order.Owner().IsGuest() {
		customer = "guest " + order.GuestEmail
	}

	addr := order.ShippingAddress
	message := fmt.Sprintf(`<b>New order %s</b>
<b>Customer:</b> %s
<b>Recipient:</b> %s, %s
<b>Ship to:</b> %s, %s, %s
<b>Items:</b>
%s
<b>Subtotal:</b> %s
<b>Tax:</b> %s
<b>Shipping:</b> %s
<b>Total:</b> %s`,
		order.OrderNumber,
		html.EscapeString(customer),
		html.EscapeString(addr.FullName),
		html.EscapeString(addr.Phone),
		html.EscapeString(addr.Street),
		html.EscapeString(addr.City),
		html.EscapeString(addr.Country),
		items.String(),
		FormatPrice(order.Subtotal),
		FormatPrice(order.Tax),
		FormatPrice(order.ShippingCost),
		FormatPrice(order.Total),
	)
	return strings.TrimSpace(message)
}
