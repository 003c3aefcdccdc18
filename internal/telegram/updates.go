package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"nftgate/internal/audit"
)

// Update is one entry from getUpdates.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message is the subset of the Bot API message we act on.
type Message struct {
	MessageID      int64  `json:"message_id"`
	From           *User  `json:"from"`
	Chat           Chat   `json:"chat"`
	Text           string `json:"text"`
	NewChatMembers []User `json:"new_chat_members"`
	LeftChatMember *User  `json:"left_chat_member"`
}

// User identifies a Telegram account.
type User struct {
	ID       int64  `json:"id"`
	IsBot    bool   `json:"is_bot"`
	Username string `json:"username"`
}

// Chat identifies a Telegram chat.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// MembershipHandler receives join and leave events for the guarded
// group.
type MembershipHandler interface {
	HandleJoin(ctx context.Context, userID int64, username string) error
	HandleLeave(ctx context.Context, userID int64)
	Pending(ctx context.Context) (int, error)
}

// Poller long-polls getUpdates and feeds membership events of one group
// to the handler. Messages from other chats are ignored.
type Poller struct {
	client  *Client
	groupID int64
	handler MembershipHandler
	audit   *audit.Log

	pollTimeout time.Duration
	logger      *slog.Logger
}

// NewPoller creates a poller for the given group.
func NewPoller(client *Client, groupID int64, handler MembershipHandler, auditLog *audit.Log, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		client:      client,
		groupID:     groupID,
		handler:     handler,
		audit:       auditLog,
		pollTimeout: 30 * time.Second,
		logger:      logger,
	}
}

// Run polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	var offset int64
	for {
		updates, err := p.client.GetUpdates(ctx, offset, p.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("getUpdates failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(3 * time.Second):
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			p.handleUpdate(ctx, u)
		}
	}
}

func (p *Poller) handleUpdate(ctx context.Context, u Update) {
	msg := u.Message
	if msg == nil || msg.Chat.ID != p.groupID {
		return
	}

	for _, member := range msg.NewChatMembers {
		if member.IsBot {
			continue
		}
		if err := p.handler.HandleJoin(ctx, member.ID, member.Username); err != nil {
			p.logger.Error("handling join failed", "user_id", member.ID, "error", err)
		}
	}

	if left := msg.LeftChatMember; left != nil && !left.IsBot {
		p.handler.HandleLeave(ctx, left.ID)
	}

	if msg.From != nil && strings.HasPrefix(msg.Text, "/") {
		p.handleCommand(ctx, msg)
	}
}

// handleCommand serves the /status and /analytics admin commands.
func (p *Poller) handleCommand(ctx context.Context, msg *Message) {
	command := strings.Fields(msg.Text)[0]
	if i := strings.Index(command, "@"); i > 0 {
		command = command[:i]
	}
	if command != "/status" && command != "/analytics" {
		return
	}

	status, err := p.client.GetMemberStatus(ctx, p.groupID, msg.From.ID)
	if err != nil {
		p.logger.Warn("member status lookup failed", "user_id", msg.From.ID, "error", err)
		return
	}
	if status != StatusCreator && status != StatusAdministrator {
		return
	}

	var reply string
	switch command {
	case "/status":
		pending, err := p.handler.Pending(ctx)
		if err != nil {
			p.logger.Error("pending count failed", "error", err)
			return
		}
		reply = fmt.Sprintf("Pending verifications: %d", pending)
	case "/analytics":
		reply = p.analyticsReply()
	}

	if err := p.client.SendMessage(ctx, p.groupID, reply); err != nil {
		p.logger.Error("sending command reply failed", "error", err)
	}
}

func (p *Poller) analyticsReply() string {
	verified, removed, err := p.audit.Totals()
	if err != nil {
		p.logger.Error("audit totals failed", "error", err)
		return "Analytics unavailable."
	}
	recent, err := p.audit.Recent(5)
	if err != nil {
		p.logger.Error("audit recent failed", "error", err)
		return "Analytics unavailable."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Verified: %d\nRemoved: %d\n", verified, removed)
	if len(recent) > 0 {
		b.WriteString("Recent:\n")
		for _, e := range recent {
			name := e.Username
			if name == "" {
				name = strconv.FormatInt(e.UserID, 10)
			}
			fmt.Fprintf(&b, "  %s: %s (%s)\n", name, e.Status, e.Reason)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
