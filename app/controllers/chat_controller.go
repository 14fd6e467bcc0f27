package controllers

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ManuelReschke/VelvetChat/app/models"
	"github.com/ManuelReschke/VelvetChat/app/repository"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/database"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/quota"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/usercontext"
)

var (
	chatGate     *quota.Gate
	chatGateOnce sync.Once
)

func getChatGate() *quota.Gate {
	chatGateOnce.Do(func() {
		chatGate = quota.NewGateFromDB(database.GetDB(), newResolver(), quota.NewDefaultLockRoller())
	})
	return chatGate
}

type createChatRequest struct {
	PersonaID uint   `json:"persona_id"`
	Title     string `json:"title"`
}

// HandleCreateChat creates a chat with a persona. Creation is quota-gated by
// the user's tier; exclusive personas additionally require entitlement.
func HandleCreateChat(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication")
	}

	var req createChatRequest
	if err := c.BodyParser(&req); err != nil || req.PersonaID == 0 {
		return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "persona_id is required")
	}

	gate := getChatGate()
	chatQuota, err := gate.CheckChatCreation(context.Background(), userCtx.UserID)
	if err != nil {
		if errors.Is(err, quota.ErrChatLimitReached) {
			// Denial carries the quota so clients can render the upgrade prompt.
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":          "CHAT_LIMIT_REACHED",
				"message":        "Chat limit for the current tier reached",
				"current_count":  chatQuota.CurrentCount,
				"limit":          chatQuota.Limit,
				"tier":           chatQuota.Tier,
				"suggested_tier": chatQuota.SuggestedTier,
			})
		}
		return writeDomainError(c, err)
	}

	repos := repository.GetGlobalRepositories()
	persona, perr := repos.Persona.GetByID(req.PersonaID)
	if perr != nil {
		if errors.Is(perr, gorm.ErrRecordNotFound) {
			return writeError(c, fiber.StatusNotFound, "PERSONA_NOT_FOUND", "Persona not found")
		}
		return writeDomainError(c, perr)
	}
	if persona.Status != models.STATUS_ACTIVE {
		return writeError(c, fiber.StatusNotFound, "PERSONA_NOT_FOUND", "Persona not found")
	}
	if aerr := gate.CheckPersonaAccess(context.Background(), userCtx.UserID, persona); aerr != nil {
		return writeDomainError(c, aerr)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = persona.Name
	}
	chat := &models.Chat{UserID: userCtx.UserID, PersonaID: persona.ID, Title: title}
	if cerr := repos.Chat.Create(chat); cerr != nil {
		return writeDomainError(c, cerr)
	}

	// Personas with a greeting open the conversation. Greetings are never locked.
	if greeting := strings.TrimSpace(persona.Greeting); greeting != "" {
		msg := &models.ChatMessage{ChatID: chat.ID, Role: models.MessageRoleAssistant, Content: greeting}
		if merr := repos.Chat.AddMessage(msg); merr != nil {
			return writeDomainError(c, merr)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"chat": chat,
		"chat_quota": fiber.Map{
			"current_count":  chatQuota.CurrentCount + 1,
			"limit":          chatQuota.Limit,
			"tier":           chatQuota.Tier,
			"suggested_tier": chatQuota.SuggestedTier,
		},
	})
}

// HandleListChats lists the authenticated user's chats.
func HandleListChats(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication")
	}

	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	chats, err := repository.GetGlobalRepositories().Chat.GetByUserID(userCtx.UserID, offset, limit)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(fiber.Map{"chats": chats})
}

// HandleGetChatMessages returns a chat's messages. Locked messages carry only
// a redacted preview; the full content stays server-side until unlocked.
func HandleGetChatMessages(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication")
	}

	chat, err := ownedChat(c, userCtx.UserID)
	if err != nil {
		return err
	}

	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 100)
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	messages, merr := repository.GetGlobalRepositories().Chat.GetMessages(chat.ID, offset, limit)
	if merr != nil {
		return writeDomainError(c, merr)
	}

	views := make([]fiber.Map, 0, len(messages))
	for i := range messages {
		views = append(views, messageView(&messages[i]))
	}
	return c.JSON(fiber.Map{"chat_id": chat.ID, "messages": views})
}

type sendMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// HandleSendMessage appends a message to a chat. User turns go through the
// billing path (free allowance, then discounted debit). Assistant turns are
// posted by the chat orchestrator and roll against the persona's lock
// probability instead.
func HandleSendMessage(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication")
	}

	chat, err := ownedChat(c, userCtx.UserID)
	if err != nil {
		return err
	}

	var req sendMessageRequest
	if berr := c.BodyParser(&req); berr != nil {
		return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "Malformed request body")
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "content is required")
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = models.MessageRoleUser
	}

	repos := repository.GetGlobalRepositories()
	gate := getChatGate()

	switch role {
	case models.MessageRoleUser:
		charge, cerr := gate.ChargeMessage(context.Background(), userCtx.UserID)
		if cerr != nil {
			return writeDomainError(c, cerr)
		}
		msg := &models.ChatMessage{ChatID: chat.ID, Role: models.MessageRoleUser, Content: content}
		if merr := repos.Chat.AddMessage(msg); merr != nil {
			return writeDomainError(c, merr)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"message": messageView(msg),
			"charge":  charge,
		})

	case models.MessageRoleAssistant:
		persona, perr := repos.Persona.GetByID(chat.PersonaID)
		if perr != nil {
			return writeDomainError(c, perr)
		}
		locked, price := gate.RollMessageLock(persona)
		msg := &models.ChatMessage{
			ChatID:      chat.ID,
			Role:        models.MessageRoleAssistant,
			Content:     content,
			IsLocked:    locked,
			UnlockPrice: price,
		}
		if merr := repos.Chat.AddMessage(msg); merr != nil {
			return writeDomainError(c, merr)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": messageView(msg)})

	default:
		return writeError(c, fiber.StatusBadRequest, "INVALID_ROLE", "role must be user or assistant")
	}
}

// HandleUnlockMessage pays to reveal a locked assistant message.
func HandleUnlockMessage(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication")
	}

	chatID, err := c.ParamsInt("id")
	if err != nil || chatID <= 0 {
		return writeError(c, fiber.StatusBadRequest, "INVALID_CHAT_ID", "Invalid chat id")
	}
	messageID, err := c.ParamsInt("messageId")
	if err != nil || messageID <= 0 {
		return writeError(c, fiber.StatusBadRequest, "INVALID_MESSAGE_ID", "Invalid message id")
	}

	result, uerr := getChatGate().UnlockMessage(context.Background(), userCtx.UserID, uint(chatID), uint(messageID))
	if uerr != nil {
		return writeDomainError(c, uerr)
	}
	return c.JSON(result)
}

// ownedChat loads the :id chat and verifies it belongs to userID. Foreign
// chats are indistinguishable from missing ones.
func ownedChat(c *fiber.Ctx, userID uint) (*models.Chat, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return nil, writeError(c, fiber.StatusBadRequest, "INVALID_CHAT_ID", "Invalid chat id")
	}

	chat, err := repository.GetGlobalRepositories().Chat.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, writeError(c, fiber.StatusNotFound, "CHAT_NOT_FOUND", "Chat not found")
		}
		return nil, writeDomainError(c, err)
	}
	if chat.UserID != userID {
		return nil, writeError(c, fiber.StatusNotFound, "CHAT_NOT_FOUND", "Chat not found")
	}
	return chat, nil
}

func messageView(m *models.ChatMessage) fiber.Map {
	view := fiber.Map{
		"id":         m.ID,
		"chat_id":    m.ChatID,
		"role":       m.Role,
		"is_locked":  m.IsLocked,
		"created_at": m.CreatedAt,
	}
	if m.IsLocked {
		view["preview"] = m.Preview()
		view["unlock_price"] = m.UnlockPrice
	} else {
		view["content"] = m.Content
		if m.UnlockedAt != nil {
			view["unlocked_at"] = m.UnlockedAt
			view["unlock_price"] = m.UnlockPrice
		}
	}
	return view
}
