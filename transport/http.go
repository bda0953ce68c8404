package transport

import (
	stderrors "errors"
	"log/slog"
	"strings"

	"campushub/auth"
	"campushub/domain"
	"campushub/errors"
	"campushub/repositories"
	"campushub/services"

	"github.com/gofiber/fiber/v2"
)

// HTTPHandler exposes the REST surface: account lifecycle, message history,
// and group administration. Everything realtime stays on the socket.
type HTTPHandler struct {
	log      *slog.Logger
	accounts services.IAuthService
	groups   services.IGroupService
	messages repositories.IMessageRepository
	members  repositories.IGroupRepository
	tokens   *auth.TokenService
}

func NewHTTPHandler(
	log *slog.Logger,
	accounts services.IAuthService,
	groups services.IGroupService,
	messages repositories.IMessageRepository,
	members repositories.IGroupRepository,
	tokens *auth.TokenService,
) *HTTPHandler {
	return &HTTPHandler{
		log:      log,
		accounts: accounts,
		groups:   groups,
		messages: messages,
		members:  members,
		tokens:   tokens,
	}
}

func (h *HTTPHandler) Register(app *fiber.App) {
	api := app.Group("/api/v1")
	api.Post("/register", h.register)
	api.Post("/login", h.login)

	// Everything registered below requires a resolved identity.
	api.Use(h.requireAuth)
	api.Get("/rooms/:id/messages", h.history)
	api.Post("/groups", h.createGroup)
	api.Post("/groups/:id/members", h.addMember)
	api.Delete("/groups/:id/members/:userId", h.removeMember)
}

// requireAuth resolves the bearer token and stashes the caller's user ID in
// the request locals. The socket handshake has its own resolution path.
func (h *HTTPHandler) requireAuth(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
	}
	userID, err := h.tokens.Resolve(token)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
	}
	c.Locals("userID", userID)
	return c.Next()
}

func callerID(c *fiber.Ctx) string {
	id, _ := c.Locals("userID").(string)
	return id
}

func (h *HTTPHandler) register(c *fiber.Ctx) error {
	var req auth.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed body")
	}
	token, err := h.accounts.Register(req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"token": token})
}

func (h *HTTPHandler) login(c *fiber.Ctx) error {
	var req auth.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed body")
	}
	token, err := h.accounts.Login(req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"token": token})
}

// history pages a room's messages newest-first. The cursor is the opaque
// value returned by the previous page; absent means "from the top".
func (h *HTTPHandler) history(c *fiber.Ctx) error {
	userID := callerID(c)

	room, err := domain.ParseRoomID(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid room id")
	}
	if err := h.authorizeHistory(userID, room); err != nil {
		return h.fail(c, err)
	}

	var cursor *string
	if raw := c.Query("cursor"); raw != "" {
		cursor = &raw
	}
	messages, next, err := h.messages.GetMessages(room, cursor)
	if err != nil {
		return h.fail(c, err)
	}

	resp := fiber.Map{"messages": messages}
	if next != nil {
		resp["nextCursor"] = *next
	}
	return c.JSON(resp)
}

// authorizeHistory mirrors the socket-side room authorization: groups need
// durable membership, conversations need participation, personal rooms are
// readable only by their owner.
func (h *HTTPHandler) authorizeHistory(userID string, room domain.Room) error {
	switch room.Kind {
	case domain.KindGroup:
		member, err := h.members.IsGroupMember(room.Ref, userID)
		if err != nil {
			return err
		}
		if !member {
			return errors.ErrPermission
		}
		return nil
	case domain.KindConversation:
		a, b, _ := strings.Cut(room.Ref, ":")
		if userID != a && userID != b {
			return errors.ErrPermission
		}
		return nil
	case domain.KindPersonal:
		if userID != room.Ref {
			return errors.ErrPermission
		}
		return nil
	}
	return errors.ErrInvalidRoomID
}

type createGroupRequest struct {
	Name string `json:"name"`
}

func (h *HTTPHandler) createGroup(c *fiber.Ctx) error {
	var req createGroupRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "group name required")
	}
	group, err := h.groups.CreateGroup(req.Name, callerID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(group)
}

type addMemberRequest struct {
	UserID string `json:"userId"`
}

func (h *HTTPHandler) addMember(c *fiber.Ctx) error {
	var req addMemberRequest
	if err := c.BodyParser(&req); err != nil || req.UserID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "userId required")
	}
	if err := h.requireMember(c.Params("id"), callerID(c)); err != nil {
		return h.fail(c, err)
	}
	if err := h.groups.AddMember(c.Params("id"), req.UserID); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// removeMember handles both leaving (self) and eviction by the group owner.
func (h *HTTPHandler) removeMember(c *fiber.Ctx) error {
	groupID := c.Params("id")
	target := c.Params("userId")
	caller := callerID(c)

	if target != caller {
		group, err := h.members.GetGroup(groupID)
		if err != nil {
			return h.fail(c, err)
		}
		if group.OwnerID != caller {
			return h.fail(c, errors.ErrPermission)
		}
	}
	if err := h.groups.RemoveMember(groupID, target); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *HTTPHandler) requireMember(groupID, userID string) error {
	member, err := h.members.IsGroupMember(groupID, userID)
	if err != nil {
		return err
	}
	if !member {
		return errors.ErrPermission
	}
	return nil
}

// fail translates domain errors into HTTP statuses. Unexpected failures are
// logged and masked as 500 without leaking internals.
func (h *HTTPHandler) fail(c *fiber.Ctx, err error) error {
	switch {
	case stderrors.Is(err, errors.ErrInvalidCredentials),
		stderrors.Is(err, errors.ErrUnauthorized):
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	case stderrors.Is(err, errors.ErrPermission):
		return fiber.NewError(fiber.StatusForbidden, "forbidden")
	case stderrors.Is(err, errors.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "not found")
	case stderrors.Is(err, errors.ErrUserAlreadyExists):
		return fiber.NewError(fiber.StatusConflict, "email already registered")
	case stderrors.Is(err, errors.ErrInvalidPassword),
		stderrors.Is(err, errors.ErrInvalidRoomID):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	h.log.Error("request failed", "path", c.Path(), "err", err)
	return fiber.ErrInternalServerError
}
