package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"campushub/contract"
	"campushub/domain"
	"campushub/domain/event"
	"campushub/errors"
)

// Controller orchestrates connection lifecycles and routes every inbound
// socket operation through the presence registry, room index, typing tracker
// and dispatcher. Store round-trips always complete before any in-memory
// mutation they feed; the in-memory mutations themselves are atomic behind
// each component's lock.
type Controller struct {
	log      *slog.Logger
	resolver contract.IdentityResolver
	store    contract.Store
	presence *PresenceRegistry
	rooms    *RoomIndex
	typing   *TypingTracker
	dispatch contract.Dispatcher
}

func NewController(log *slog.Logger, resolver contract.IdentityResolver, store contract.Store,
	presence *PresenceRegistry, rooms *RoomIndex, typing *TypingTracker,
	dispatch contract.Dispatcher) *Controller {
	return &Controller{
		log:      log,
		resolver: resolver,
		store:    store,
		presence: presence,
		rooms:    rooms,
		typing:   typing,
		dispatch: dispatch,
	}
}

// Connect authenticates the credential, hydrates membership, registers
// presence and notifies peers. An authentication failure terminates the
// sequence before any state is created. A hydration failure downgrades the
// connection to an empty initial room set instead of refusing it.
func (c *Controller) Connect(ctx context.Context, token string, conn contract.Connection) (domain.Identity, error) {
	userID, err := c.resolver.Resolve(token)
	if err != nil {
		return domain.Identity{}, err
	}
	identity, err := c.store.GetUser(ctx, userID)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: unknown identity %s", errors.ErrUnauthorized, userID)
	}

	firstConnection := c.presence.Register(identity, conn)

	rooms, err := c.rooms.Hydrate(ctx, userID)
	if err != nil {
		c.log.Warn("hydration degraded, connection continues with partial room set",
			"user", userID, "err", err)
	}

	roomIDs := make([]string, 0, len(rooms))
	for _, room := range rooms {
		roomIDs = append(roomIDs, room.ID())
	}
	if err := conn.Deliver(event.Connected{UserID: userID, UserData: identity, Rooms: roomIDs}); err != nil {
		c.log.Warn("connected ack not delivered", "user", userID, "err", err)
	}

	if firstConnection {
		c.notifyStatus(userID, domain.StatusOnline)
		if err := c.store.UpdatePresence(ctx, userID, domain.PresenceRecord{Online: true, LastSeen: time.Now().UTC()}); err != nil {
			c.log.Warn("presence record not persisted", "user", userID, "err", err)
		}
	}

	c.log.Info("connection active", "user", userID, "conn", conn.ID(), "rooms", len(rooms))
	return identity, nil
}

// Disconnect releases one connection. Only when it was the identity's last
// connection does the offline sequence run: typing state cleared, peers
// notified once per shared room, in-memory room edges dropped. Durable group
// membership is never touched here; closing a socket is not leaving a group.
func (c *Controller) Disconnect(ctx context.Context, userID, connID string) {
	offline := c.presence.Deregister(userID, connID)
	if !offline {
		return
	}

	for _, room := range c.typing.ClearIdentity(userID) {
		c.dispatchTyping(room, userID, false)
	}

	c.notifyStatus(userID, domain.StatusOffline)
	c.rooms.DropIdentity(userID)

	if err := c.store.UpdatePresence(ctx, userID, domain.PresenceRecord{Online: false, LastSeen: time.Now().UTC()}); err != nil {
		c.log.Warn("presence record not persisted", "user", userID, "err", err)
	}
	c.log.Info("identity offline", "user", userID)
}

// notifyStatus emits one status-change event per room the identity belongs
// to, excluding the identity's own connections. Peer reach is computed from
// the room index, never by scanning the whole presence registry.
func (c *Controller) notifyStatus(userID string, status domain.Status) {
	evt := event.UserStatusChange{UserID: userID, Status: status}
	for _, room := range c.rooms.RoomsOf(userID) {
		if room.Kind == domain.KindPersonal {
			continue
		}
		c.dispatch.ToRoom(room, evt, userID)
	}
}

// Touch refreshes last-activity on the connection. The transport calls it
// for every inbound frame, not only pings; a connection actively sending
// messages must never be swept as idle.
func (c *Controller) Touch(userID, connID string) {
	c.presence.TouchConn(userID, connID)
}

// Ping refreshes liveness and answers on the same connection.
func (c *Controller) Ping(userID string, conn contract.Connection) {
	c.presence.TouchConn(userID, conn.ID())
	if err := conn.Deliver(event.Pong{Timestamp: time.Now().UnixMilli()}); err != nil {
		c.log.Debug("pong not delivered", "user", userID, "err", err)
	}
}

// UpdateStatus sets the status on the identity's presence entry and
// broadcasts the change to every shared room.
func (c *Controller) UpdateStatus(userID string, status domain.Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: status %q", errors.ErrInvalidEvent, status)
	}
	if !c.presence.SetStatus(userID, status) {
		// No entry means no live connection; nothing to update.
		return nil
	}
	c.notifyStatus(userID, status)
	return nil
}

// JoinRoom subscribes the identity to a room after a membership check
// against the durable store. The error taxonomy decides the caller's reply;
// no peer is notified of a failed attempt.
func (c *Controller) JoinRoom(ctx context.Context, userID string, conn contract.Connection, roomID string) error {
	room, err := domain.ParseRoomID(roomID)
	if err != nil {
		return err
	}
	if err := c.authorizeRoom(ctx, userID, room); err != nil {
		return err
	}
	c.rooms.Join(userID, room)
	return conn.Deliver(event.RoomJoined{RoomID: room.ID()})
}

// LeaveRoom drops the index edge. This is the explicit action path, distinct
// from disconnect teardown.
func (c *Controller) LeaveRoom(userID string, conn contract.Connection, roomID string) error {
	room, err := domain.ParseRoomID(roomID)
	if err != nil {
		return err
	}
	c.rooms.Leave(userID, room)
	return conn.Deliver(event.RoomLeft{RoomID: room.ID()})
}

func (c *Controller) authorizeRoom(ctx context.Context, userID string, room domain.Room) error {
	switch room.Kind {
	case domain.KindGroup:
		member, err := c.store.IsGroupMember(ctx, room.Ref, userID)
		if err != nil {
			return fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
		}
		if !member {
			return fmt.Errorf("%w: not a member of group %s", errors.ErrPermission, room.Ref)
		}
	case domain.KindConversation:
		if conversationOther(room, userID) == "" {
			return fmt.Errorf("%w: not a participant of %s", errors.ErrPermission, room.ID())
		}
	case domain.KindPersonal:
		if room.Ref != userID {
			return fmt.Errorf("%w: personal room of another identity", errors.ErrPermission)
		}
	}
	return nil
}

// OnlineUsers answers with the online members of a room, or with the online
// peers across every shared room when no room is given.
func (c *Controller) OnlineUsers(userID string, conn contract.Connection, roomID string) error {
	var candidates []string
	if roomID == "" {
		candidates = c.rooms.PeersOf(userID)
	} else {
		room, err := domain.ParseRoomID(roomID)
		if err != nil {
			return err
		}
		if !c.rooms.Contains(userID, room) {
			return fmt.Errorf("%w: not subscribed to %s", errors.ErrPermission, room.ID())
		}
		candidates = c.rooms.MembersOf(room)
	}

	users := make([]domain.Identity, 0, len(candidates))
	for _, id := range candidates {
		if id == userID {
			continue
		}
		if identity, ok := c.presence.IdentityOf(id); ok {
			users = append(users, identity)
		}
	}
	return conn.Deliver(event.OnlineUsers{Users: users})
}

// TypingStart records the typing state and notifies peers at most once per
// timeout window.
func (c *Controller) TypingStart(userID string, p event.Typing) error {
	room, err := c.typingRoom(userID, p)
	if err != nil {
		return err
	}
	if c.typing.Start(room, userID) {
		c.dispatchTyping(room, userID, true)
	}
	return nil
}

// TypingStop clears the state and notifies peers, but only when peers had
// seen a start.
func (c *Controller) TypingStop(userID string, p event.Typing) error {
	room, err := c.typingRoom(userID, p)
	if err != nil {
		return err
	}
	if c.typing.Stop(room, userID) {
		c.dispatchTyping(room, userID, false)
	}
	return nil
}

func (c *Controller) typingRoom(userID string, p event.Typing) (domain.Room, error) {
	if p.ConversationID != "" {
		return domain.ConversationRoom(userID, p.ConversationID), nil
	}
	room, err := domain.ParseRoomID(p.RoomID)
	if err != nil {
		return domain.Room{}, err
	}
	if room.Kind == domain.KindGroup && !c.rooms.Contains(userID, room) {
		return domain.Room{}, fmt.Errorf("%w: not subscribed to %s", errors.ErrPermission, room.ID())
	}
	return room, nil
}

// dispatchTyping excludes every connection of the typist, including their
// other devices: a device never sees its owner's own typing echo.
func (c *Controller) dispatchTyping(room domain.Room, userID string, isTyping bool) {
	evt := event.UserTyping{UserID: userID, RoomID: room.ID(), IsTyping: isTyping}
	if room.Kind == domain.KindConversation {
		// The partner may not hold an index edge yet when no message has
		// ever been exchanged; target their identity directly.
		if other := conversationOther(room, userID); other != "" {
			c.dispatch.ToIdentity(other, evt)
		}
		return
	}
	c.dispatch.ToRoom(room, evt, userID)
}

// ActiveTypists exposes the ordered typist list for a room.
func (c *Controller) ActiveTypists(room domain.Room) []string {
	return c.typing.ActiveTypists(room)
}

// SendMessage persists the message, then fans it out: the sender's devices
// see status "sent", everyone reached live sees "delivered". CreateMessage
// always completes before the first event fires.
func (c *Controller) SendMessage(ctx context.Context, userID string, p event.SendMessage) error {
	msg := domain.Message{
		SenderID:    userID,
		GroupID:     p.GroupID,
		RecipientID: p.RecipientID,
		Content:     p.Content,
		MessageType: p.MessageType,
		Attachments: p.Attachments,
	}

	if p.GroupID != "" {
		member, err := c.store.IsGroupMember(ctx, p.GroupID, userID)
		if err != nil {
			return fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
		}
		if !member {
			return fmt.Errorf("%w: not a member of group %s", errors.ErrPermission, p.GroupID)
		}
	} else {
		if _, err := c.store.GetUser(ctx, p.RecipientID); err != nil {
			return fmt.Errorf("%w: recipient %s", errors.ErrNotFound, p.RecipientID)
		}
	}

	stored, err := c.store.CreateMessage(ctx, msg)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	c.dispatch.ToIdentity(userID, event.NewMessage{Message: stored})

	delivered := stored
	delivered.Status = domain.DeliveryDelivered

	if stored.GroupID != "" {
		room := domain.GroupRoom(stored.GroupID)
		c.dispatch.ToRoom(room, event.NewMessage{Message: delivered}, userID)
		c.markGroupDeliveries(ctx, stored, room)
		return nil
	}

	// A direct message refreshes both conversation edges so later typing and
	// history events reach a partner hydrated before this conversation began.
	room := stored.Room()
	c.rooms.Join(userID, room)
	if c.presence.IsOnline(stored.RecipientID) {
		c.rooms.Join(stored.RecipientID, room)
	}

	if c.dispatch.ToIdentity(stored.RecipientID, event.NewMessage{Message: delivered}) > 0 {
		if _, err := c.store.MarkDelivered(ctx, stored.ID.String(), stored.RecipientID); err != nil {
			c.log.Warn("delivery marker not persisted", "message", stored.ID, "err", err)
			return nil
		}
		c.dispatch.ToIdentity(userID, event.MessageDelivered{
			MessageID:   stored.ID.String(),
			UserID:      stored.RecipientID,
			DeliveredAt: time.Now().UTC(),
		})
	}
	return nil
}

// markGroupDeliveries records delivery markers for every member reached
// live. Marker writes are best-effort side effects of dispatch.
func (c *Controller) markGroupDeliveries(ctx context.Context, msg domain.Message, room domain.Room) {
	for _, member := range c.rooms.MembersOf(room) {
		if member == msg.SenderID || !c.presence.IsOnline(member) {
			continue
		}
		if _, err := c.store.MarkDelivered(ctx, msg.ID.String(), member); err != nil {
			c.log.Warn("delivery marker not persisted", "message", msg.ID, "user", member, "err", err)
		}
	}
}

// MarkRead persists the read marker, then notifies the original sender.
func (c *Controller) MarkRead(ctx context.Context, userID string, p event.MarkRead) error {
	msg, err := c.store.MarkRead(ctx, p.MessageID, userID)
	if err != nil {
		return err
	}
	if msg.SenderID != "" && msg.SenderID != userID {
		c.dispatch.ToIdentity(msg.SenderID, event.MessageRead{
			MessageID:      p.MessageID,
			UserID:         userID,
			ConversationID: p.ConversationID,
		})
	}
	return nil
}

// MarkDelivered persists the delivery marker, then notifies the sender.
func (c *Controller) MarkDelivered(ctx context.Context, userID string, p event.MarkDelivered) error {
	msg, err := c.store.MarkDelivered(ctx, p.MessageID, userID)
	if err != nil {
		return err
	}
	if msg.SenderID != "" && msg.SenderID != userID {
		c.dispatch.ToIdentity(msg.SenderID, event.MessageDelivered{
			MessageID:   p.MessageID,
			UserID:      userID,
			DeliveredAt: time.Now().UTC(),
		})
	}
	return nil
}

// CloseIdle force-closes every connection idle past the threshold. The
// disconnect side effects are exactly those of a client-initiated close;
// the transport's own close callback degenerates to a no-op afterwards.
func (c *Controller) CloseIdle(ctx context.Context, threshold time.Duration) int {
	idle := c.presence.IdleConnections(threshold)
	for _, ic := range idle {
		c.log.Info("closing idle connection", "user", ic.UserID, "conn", ic.Conn.ID())
		c.Disconnect(ctx, ic.UserID, ic.Conn.ID())
		if err := ic.Conn.Close(); err != nil {
			c.log.Debug("idle connection close", "conn", ic.Conn.ID(), "err", err)
		}
	}
	return len(idle)
}

// ExpireTyping sweeps stale typing entries and emits the stop events peers
// would otherwise wait for indefinitely.
func (c *Controller) ExpireTyping() {
	for _, key := range c.typing.Sweep() {
		c.dispatchTyping(key.Room, key.UserID, false)
	}
}

// AdmitToGroup mirrors a durable membership addition into the live index
// for an already-connected identity.
func (c *Controller) AdmitToGroup(groupID, userID string) {
	if !c.presence.IsOnline(userID) {
		return
	}
	room := domain.GroupRoom(groupID)
	c.rooms.Join(userID, room)
	c.dispatch.ToIdentity(userID, event.RoomJoined{RoomID: room.ID()})
}

// EvictFromGroup drops the index edge the moment durable membership is
// removed, so the identity's live connections leave the delivery set
// synchronously with the removal action.
func (c *Controller) EvictFromGroup(groupID, userID string) {
	room := domain.GroupRoom(groupID)
	c.rooms.Leave(userID, room)
	c.typing.Stop(room, userID)
	c.dispatch.ToIdentity(userID, event.RoomLeft{RoomID: room.ID()})
}

// conversationOther returns the other member of a conversation room, or ""
// when userID is not part of the pair.
func conversationOther(room domain.Room, userID string) string {
	a, b, ok := strings.Cut(room.Ref, ":")
	if !ok {
		return ""
	}
	switch userID {
	case a:
		return b
	case b:
		return a
	}
	return ""
}
