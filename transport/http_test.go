package transport

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"campushub/auth"
	"campushub/domain"
	"campushub/errors"
	"campushub/repositories"
	"campushub/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

type fakeAccounts struct {
	loginErr error
}

func (f *fakeAccounts) Register(req auth.RegisterRequest) (services.Token, error) {
	if req.Email == "taken@campus.edu" {
		return "", errors.ErrUserAlreadyExists
	}
	return "token-new", nil
}

func (f *fakeAccounts) Login(req auth.LoginRequest) (services.Token, error) {
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return "token-login", nil
}

type fakeGroupSvc struct {
	removed [][2]string
}

func (f *fakeGroupSvc) CreateGroup(name, ownerID string) (repositories.Group, error) {
	return repositories.Group{ID: "g1", Name: name, OwnerID: ownerID, Members: []string{ownerID}}, nil
}
func (f *fakeGroupSvc) AddMember(groupID, userID string) error { return nil }
func (f *fakeGroupSvc) RemoveMember(groupID, userID string) error {
	f.removed = append(f.removed, [2]string{groupID, userID})
	return nil
}

type fakeMessages struct {
	messages []domain.Message
}

func (f *fakeMessages) CreateMessage(m domain.Message) (domain.Message, error) { return m, nil }
func (f *fakeMessages) GetMessages(room domain.Room, cursor *string) ([]domain.Message, *string, error) {
	return f.messages, nil, nil
}
func (f *fakeMessages) MarkDelivered(messageID, userID string) (domain.Message, error) {
	return domain.Message{}, errors.ErrNotFound
}
func (f *fakeMessages) MarkRead(messageID, userID string) (domain.Message, error) {
	return domain.Message{}, errors.ErrNotFound
}
func (f *fakeMessages) FindConversationPartners(userID string) ([]string, error) { return nil, nil }

type fakeGroups struct {
	members map[string][]string // groupID -> member IDs
	owners  map[string]string
}

func (f *fakeGroups) CreateGroup(name, ownerID string) (repositories.Group, error) {
	return repositories.Group{}, nil
}
func (f *fakeGroups) GetGroup(groupID string) (repositories.Group, error) {
	owner, ok := f.owners[groupID]
	if !ok {
		return repositories.Group{}, errors.ErrNotFound
	}
	return repositories.Group{ID: groupID, OwnerID: owner, Members: f.members[groupID]}, nil
}
func (f *fakeGroups) AddMember(groupID, userID string) error    { return nil }
func (f *fakeGroups) RemoveMember(groupID, userID string) error { return nil }
func (f *fakeGroups) FindGroupsByMember(userID string) ([]domain.GroupRef, error) {
	return nil, nil
}
func (f *fakeGroups) IsGroupMember(groupID, userID string) (bool, error) {
	for _, m := range f.members[groupID] {
		if m == userID {
			return true, nil
		}
	}
	return false, nil
}

type httpFixture struct {
	app      *fiber.App
	tokens   *auth.TokenService
	accounts *fakeAccounts
	groupSvc *fakeGroupSvc
	groups   *fakeGroups
	messages *fakeMessages
}

func newHTTPFixture(t *testing.T) *httpFixture {
	t.Helper()
	f := &httpFixture{
		tokens:   auth.NewTokenService("test-secret", time.Hour),
		accounts: &fakeAccounts{},
		groupSvc: &fakeGroupSvc{},
		groups: &fakeGroups{
			members: map[string][]string{"g1": {"alice", "bob"}},
			owners:  map[string]string{"g1": "alice"},
		},
		messages: &fakeMessages{},
	}
	f.app = fiber.New()
	NewHTTPHandler(slog.Default(), f.accounts, f.groupSvc,
		f.messages, f.groups, f.tokens).Register(f.app)
	return f
}

func (f *httpFixture) request(t *testing.T, method, path, asUser string, body any) *http.Response {
	t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if asUser != "" {
		token, err := f.tokens.Generate(asUser, []string{"user"})
		require.NoError(t, err)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestHTTP_Register_ReturnsToken(t *testing.T) {
	req := require.New(t)
	f := newHTTPFixture(t)

	// When registering a fresh email
	resp := f.request(t, fiber.MethodPost, "/api/v1/register", "",
		map[string]string{"email": "new@campus.edu", "password": "Str0ng!pass", "name": "New"})

	// Then a token comes back with 201
	req.Equal(fiber.StatusCreated, resp.StatusCode)
	var body map[string]string
	req.NoError(json.NewDecoder(resp.Body).Decode(&body))
	req.Equal("token-new", body["token"])
}

func TestHTTP_Register_DuplicateEmail_Conflicts(t *testing.T) {
	req := require.New(t)
	f := newHTTPFixture(t)

	resp := f.request(t, fiber.MethodPost, "/api/v1/register", "",
		map[string]string{"email": "taken@campus.edu", "password": "Str0ng!pass", "name": "Dup"})

	req.Equal(fiber.StatusConflict, resp.StatusCode)
}

func TestHTTP_Login_BadCredentials_Unauthorized(t *testing.T) {
	req := require.New(t)
	f := newHTTPFixture(t)
	f.accounts.loginErr = errors.ErrInvalidCredentials

	resp := f.request(t, fiber.MethodPost, "/api/v1/login", "",
		map[string]string{"email": "a@campus.edu", "password": "wrong"})

	req.Equal(fiber.StatusUnauthorized, resp.StatusCode)
}

func TestHTTP_History_RequiresBearerToken(t *testing.T) {
	req := require.New(t)
	f := newHTTPFixture(t)

	resp := f.request(t, fiber.MethodGet, "/api/v1/rooms/group:g1/messages", "", nil)

	req.Equal(fiber.StatusUnauthorized, resp.StatusCode)
}

func TestHTTP_History_GroupMember_SeesMessages(t *testing.T) {
	req := require.New(t)
	f := newHTTPFixture(t)
	f.messages.messages = []domain.Message{{SenderID: "alice", GroupID: "g1", Content: "hello"}}

	resp := f.request(t, fiber.MethodGet, "/api/v1/rooms/group:g1/messages", "bob", nil)

	req.Equal(fiber.StatusOK, resp.StatusCode)
	var body struct {
		Messages []domain.Message `json:"messages"`
	}
	req.NoError(json.NewDecoder(resp.Body).Decode(&body))
	req.Len(body.Messages, 1)
	req.Equal("hello", body.Messages[0].Content)
}

func TestHTTP_History_NonMember_Forbidden(t *testing.T) {
	req := require.New(t)
	f := newHTTPFixture(t)

	resp := f.request(t, fiber.MethodGet, "/api/v1/rooms/group:g1/messages", "mallory", nil)

	req.Equal(fiber.StatusForbidden, resp.StatusCode)
}

func TestHTTP_History_ConversationOutsider_Forbidden(t *testing.T) {
	req := require.New(t)
	f := newHTTPFixture(t)

	// Given a conversation between alice and bob, queried by carol
	resp := f.request(t, fiber.MethodGet, "/api/v1/rooms/conversation:alice:bob/messages", "carol", nil)

	req.Equal(fiber.StatusForbidden, resp.StatusCode)
}

func TestHTTP_CreateGroup_ReturnsDocument(t *testing.T) {
	req := require.New(t)
	f := newHTTPFixture(t)

	resp := f.request(t, fiber.MethodPost, "/api/v1/groups", "alice",
		map[string]string{"name": "algorithms study"})

	req.Equal(fiber.StatusCreated, resp.StatusCode)
	var group repositories.Group
	req.NoError(json.NewDecoder(resp.Body).Decode(&group))
	req.Equal("alice", group.OwnerID)
	req.Equal("algorithms study", group.Name)
}

func TestHTTP_RemoveMember_NonOwner_Forbidden(t *testing.T) {
	req := require.New(t)
	f := newHTTPFixture(t)

	// bob tries to evict alice from alice's group
	resp := f.request(t, fiber.MethodDelete, "/api/v1/groups/g1/members/alice", "bob", nil)

	req.Equal(fiber.StatusForbidden, resp.StatusCode)
	req.Empty(f.groupSvc.removed)
}

func TestHTTP_RemoveMember_Self_Allowed(t *testing.T) {
	req := require.New(t)
	f := newHTTPFixture(t)

	// bob leaves the group voluntarily
	resp := f.request(t, fiber.MethodDelete, "/api/v1/groups/g1/members/bob", "bob", nil)

	req.Equal(fiber.StatusNoContent, resp.StatusCode)
	req.Equal([][2]string{{"g1", "bob"}}, f.groupSvc.removed)
}
