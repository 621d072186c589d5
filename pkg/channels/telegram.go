// Package channels hosts the Telegram front-end: a command bot plus the
// notification sink the poller delivers new activity through.
package channels

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/juleshq/jules/pkg/alias"
	"github.com/juleshq/jules/pkg/api"
	"github.com/juleshq/jules/pkg/config"
	"github.com/juleshq/jules/pkg/logger"
	"github.com/juleshq/jules/pkg/poller"
	"github.com/juleshq/jules/pkg/resolve"
	"github.com/juleshq/jules/pkg/store"
)

const telegramMaxMessageLength = 4096

// TelegramChannel is the chat front-end. Commands go through the same
// resolver and stores as the CLI; the embedded poller notifies the owner chat
// about new agent activity.
type TelegramChannel struct {
	bot     *telego.Bot
	cfg     config.TelegramConfig
	client  *api.Client
	apiKey  string
	aliases *alias.Store
	poll    *poller.Service

	ownerPath string

	mu          sync.Mutex
	authedChats map[int64]bool
	ownerChatID int64
}

func NewTelegramChannel(
	cfg config.TelegramConfig,
	client *api.Client,
	apiKey string,
	aliases *alias.Store,
	ownerPath string,
) (*TelegramChannel, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramChannel{
		bot:         bot,
		cfg:         cfg,
		client:      client,
		apiKey:      apiKey,
		aliases:     aliases,
		ownerPath:   ownerPath,
		authedChats: make(map[int64]bool),
	}, nil
}

// SetPoller attaches the polling service whose sink this channel serves.
func (c *TelegramChannel) SetPoller(p *poller.Service) {
	c.poll = p
}

// Start begins long polling for updates and runs until ctx is cancelled.
func (c *TelegramChannel) Start(ctx context.Context) error {
	logger.InfoC("telegram", "Starting Telegram bot (polling mode)...")

	if ownerChat, err := store.ReadOwnerChat(c.ownerPath); err == nil && ownerChat != "" {
		var id int64
		if _, scanErr := fmt.Sscanf(ownerChat, "%d", &id); scanErr == nil {
			c.mu.Lock()
			c.ownerChatID = id
			c.mu.Unlock()
		}
	}

	updates, err := c.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout: 30,
	})
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	logger.InfoCF("telegram", "Telegram bot connected", map[string]any{
		"username": c.bot.Username(),
	})

	if c.poll != nil {
		c.poll.Start(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			if c.poll != nil {
				c.poll.Stop()
			}
			return nil
		case update, ok := <-updates:
			if !ok {
				logger.InfoC("telegram", "Updates channel closed")
				if c.poll != nil {
					c.poll.Stop()
				}
				return nil
			}
			if update.Message != nil {
				c.handleMessage(ctx, *update.Message)
			}
		}
	}
}

func (c *TelegramChannel) handleMessage(ctx context.Context, message telego.Message) {
	user := message.From
	if user == nil || message.Text == "" {
		return
	}

	userID := fmt.Sprintf("%d", user.ID)
	if !c.isAllowed(userID, user.Username) {
		logger.DebugCF("telegram", "Message rejected by allowlist", map[string]any{
			"user_id":  userID,
			"username": user.Username,
		})
		return
	}

	chatID := message.Chat.ID
	fields := strings.Fields(message.Text)
	if len(fields) == 0 {
		return
	}

	cmd := fields[0]
	// Commands may arrive as /cmd@BotName in groups.
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}

	switch cmd {
	case "/start", "/help":
		c.reply(ctx, chatID, helpText)
	case "/auth":
		c.handleAuth(ctx, chatID, fields[1:])
	case "/list":
		c.handleList(ctx, chatID)
	case "/send":
		c.handleSend(ctx, chatID, message.Text)
	default:
		c.reply(ctx, chatID, "Unknown command. Use /help to see what I understand.")
	}
}

const helpText = `These commands are supported:
/help - display this text
/auth <api-key> - authenticate with your Jules API key
/list - list available sessions
/send <session|@alias|index> <message> - send a message to a session`

func (c *TelegramChannel) handleAuth(ctx context.Context, chatID int64, args []string) {
	if len(args) != 1 {
		c.reply(ctx, chatID, "Usage: /auth <api-key>")
		return
	}

	if args[0] != c.apiKey {
		c.reply(ctx, chatID, "Authentication failed: invalid API key.")
		return
	}

	c.mu.Lock()
	c.authedChats[chatID] = true
	firstOwner := c.ownerChatID == 0
	if firstOwner {
		c.ownerChatID = chatID
	}
	c.mu.Unlock()

	c.reply(ctx, chatID, "Authentication successful!")

	if firstOwner {
		if err := store.WriteOwnerChat(c.ownerPath, fmt.Sprintf("%d", chatID)); err != nil {
			logger.ErrorCF("telegram", "Failed to persist owner chat", map[string]any{
				"error": err.Error(),
			})
			return
		}
		c.reply(ctx, chatID, "Your chat has been saved as the notification target.")
	}
}

func (c *TelegramChannel) handleList(ctx context.Context, chatID int64) {
	if !c.isAuthed(chatID) {
		c.reply(ctx, chatID, "You are not authenticated. Use /auth <api-key> first.")
		return
	}

	sessions, err := c.client.ListSessions(ctx)
	if err != nil {
		logger.ErrorCF("telegram", "Failed to list sessions", map[string]any{
			"error": err.Error(),
		})
		c.reply(ctx, chatID, "Sorry, something went wrong while listing the sessions.")
		return
	}

	grouped := c.aliases.BySession()

	var sb strings.Builder
	sb.WriteString("To send a message, use /send <session_id_or_alias> <message>.\n\nAvailable sessions:\n")
	for i, session := range sessions {
		aliasStr := ""
		if names := grouped[session.ID]; len(names) > 0 {
			aliasStr = fmt.Sprintf(" (%s)", strings.Join(names, ", "))
		}
		sb.WriteString(fmt.Sprintf("%d. %s%s: %s\n", i+1, session.ID, aliasStr, session.Title))
	}
	if len(sessions) == 0 {
		sb.WriteString("No sessions found.\n")
	}

	c.reply(ctx, chatID, sb.String())
}

func (c *TelegramChannel) handleSend(ctx context.Context, chatID int64, text string) {
	if !c.isAuthed(chatID) {
		c.reply(ctx, chatID, "You are not authenticated. Use /auth <api-key> first.")
		return
	}

	// /send <token> <prompt...>
	parts := strings.SplitN(text, " ", 3)
	if len(parts) < 3 {
		c.reply(ctx, chatID, "Invalid format. Use: /send <session_id_or_alias> <message>")
		return
	}
	token, prompt := parts[1], parts[2]

	sessions, err := c.client.ListSessions(ctx)
	if err != nil {
		logger.ErrorCF("telegram", "Failed to list sessions", map[string]any{
			"error": err.Error(),
		})
		c.reply(ctx, chatID, "Sorry, something went wrong while listing the sessions.")
		return
	}

	sessionID, err := resolve.Resolve(token, sessions, c.aliases)
	if err != nil {
		c.reply(ctx, chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	if err := c.client.SendMessage(ctx, sessionID, prompt); err != nil {
		logger.ErrorCF("telegram", "Failed to send message", map[string]any{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		c.reply(ctx, chatID, "Sorry, something went wrong while sending your message.")
		return
	}

	c.reply(ctx, chatID, "Message sent successfully!")
}

// Notify is the poller sink: new agent activity is relayed to the owner chat.
// Records from the user themselves are skipped.
func (c *TelegramChannel) Notify(session api.Session, records []api.Activity) {
	c.mu.Lock()
	ownerChatID := c.ownerChatID
	c.mu.Unlock()

	if ownerChatID == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, record := range records {
		if record.Originator != "agent" {
			continue
		}
		text := FormatNotification(session, record)
		if text == "" {
			continue
		}
		for _, chunk := range SplitMessage(text, telegramMaxMessageLength) {
			c.sendMarkdownChunk(ctx, ownerChatID, chunk)
		}
	}
}

// sendMarkdownChunk sends one MarkdownV2 chunk, falling back to plain text
// when Telegram rejects the markup. The records were already marked seen by
// the merge, so a dropped chunk would be lost for good.
func (c *TelegramChannel) sendMarkdownChunk(ctx context.Context, chatID int64, chunk string) {
	msg := tu.Message(tu.ID(chatID), chunk)
	msg.ParseMode = telego.ModeMarkdownV2
	_, err := c.bot.SendMessage(ctx, msg)
	if err == nil {
		return
	}
	logger.WarnCF("telegram", "MarkdownV2 send failed, falling back to plain text", map[string]any{
		"error": err.Error(),
	})

	plain := tu.Message(tu.ID(chatID), unescapeMarkdownV2(chunk))
	if _, err := c.bot.SendMessage(ctx, plain); err != nil {
		logger.ErrorCF("telegram", "Failed to send notification", map[string]any{
			"chat_id": chatID,
			"error":   err.Error(),
		})
	}
}

// FormatNotification renders one activity record as a MarkdownV2 message, or
// "" when the record kind has nothing worth relaying.
func FormatNotification(session api.Session, record api.Activity) string {
	title := EscapeMarkdownV2(session.Title)

	switch {
	case record.AgentMessaged != nil && record.AgentMessaged.AgentMessage != "":
		return fmt.Sprintf("New message in session *%s*:\n%s",
			title, EscapeMarkdownV2(record.AgentMessaged.AgentMessage))
	case record.PlanGenerated != nil:
		return fmt.Sprintf("Plan generated for session *%s*\\.", title)
	case record.ProgressUpdated != nil:
		progress := record.ProgressUpdated.Title
		if progress == "" {
			progress = "No title"
		}
		return fmt.Sprintf("Progress update for session *%s*:\n%s",
			title, EscapeMarkdownV2(progress))
	case record.SessionCompleted != nil:
		return fmt.Sprintf("Session *%s* completed\\.", title)
	case len(record.Artifacts) > 0:
		return fmt.Sprintf("New artifacts generated for session *%s*\\.", title)
	default:
		return ""
	}
}

// EscapeMarkdownV2 escapes the characters Telegram's MarkdownV2 parse mode
// treats as markup.
func EscapeMarkdownV2(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, ch := range text {
		switch ch {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			sb.WriteByte('\\')
		}
		sb.WriteRune(ch)
	}
	return sb.String()
}

// unescapeMarkdownV2 reverses EscapeMarkdownV2 so a chunk can be resent as
// plain text when Telegram rejects the formatted message.
func unescapeMarkdownV2(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '\\' && i+1 < len(runes) {
			switch runes[i+1] {
			case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
				continue
			}
		}
		sb.WriteRune(runes[i])
	}
	return sb.String()
}

// SplitMessage splits text into chunks of at most maxLen runes, preferring
// newline boundaries.
func SplitMessage(text string, maxLen int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if maxLen <= 0 || len(runes) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(runes) > maxLen {
		splitAt := maxLen
		for i := maxLen; i > maxLen/2; i-- {
			if runes[i-1] == '\n' {
				splitAt = i
				break
			}
		}

		// A forced split must not land between a MarkdownV2 escape backslash
		// and the character it escapes; Telegram rejects the dangling half.
		for splitAt > 1 && runes[splitAt-1] == '\\' {
			splitAt--
		}

		chunk := strings.TrimSpace(string(runes[:splitAt]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		runes = runes[splitAt:]
	}

	tail := strings.TrimSpace(string(runes))
	if tail != "" {
		chunks = append(chunks, tail)
	}
	return chunks
}

func (c *TelegramChannel) isAuthed(chatID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authedChats[chatID]
}

func (c *TelegramChannel) isAllowed(userID, username string) bool {
	if len(c.cfg.AllowFrom) == 0 {
		return true
	}
	for _, allowed := range c.cfg.AllowFrom {
		if allowed == userID || (username != "" && allowed == username) {
			return true
		}
	}
	return false
}

func (c *TelegramChannel) reply(ctx context.Context, chatID int64, text string) {
	for _, chunk := range SplitMessage(text, telegramMaxMessageLength) {
		if _, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), chunk)); err != nil {
			logger.ErrorCF("telegram", "Failed to send message", map[string]any{
				"chat_id": chatID,
				"error":   err.Error(),
			})
		}
	}
}
