package repositories

import (
	"context"

	"campushub/domain"
)

// Store bundles the three repositories behind the narrow interface the
// realtime core consumes (contract.Store). The context parameters exist for
// the contract; Badger calls are synchronous and do not take one.
type Store struct {
	Users    *UserRepository
	Groups   *GroupRepository
	Messages *MessageRepository
}

func NewStore(users *UserRepository, groups *GroupRepository, messages *MessageRepository) *Store {
	return &Store{Users: users, Groups: groups, Messages: messages}
}

func (s *Store) GetUser(_ context.Context, userID string) (domain.Identity, error) {
	user, err := s.Users.GetUser(userID)
	if err != nil {
		return domain.Identity{}, err
	}
	return user.Snapshot(), nil
}

func (s *Store) FindGroupsByMember(_ context.Context, userID string) ([]domain.GroupRef, error) {
	return s.Groups.FindGroupsByMember(userID)
}

func (s *Store) FindConversationPartners(_ context.Context, userID string) ([]string, error) {
	return s.Messages.FindConversationPartners(userID)
}

func (s *Store) IsGroupMember(_ context.Context, groupID, userID string) (bool, error) {
	return s.Groups.IsGroupMember(groupID, userID)
}

func (s *Store) UpdatePresence(_ context.Context, userID string, rec domain.PresenceRecord) error {
	return s.Users.UpdatePresence(userID, rec)
}

func (s *Store) CreateMessage(_ context.Context, m domain.Message) (domain.Message, error) {
	return s.Messages.CreateMessage(m)
}

func (s *Store) MarkDelivered(_ context.Context, messageID, userID string) (domain.Message, error) {
	return s.Messages.MarkDelivered(messageID, userID)
}

func (s *Store) MarkRead(_ context.Context, messageID, userID string) (domain.Message, error) {
	return s.Messages.MarkRead(messageID, userID)
}
