package services

import (
	"campushub/realtime"
	"campushub/repositories"
)

type IGroupService interface {
	CreateGroup(name, ownerID string) (repositories.Group, error)
	AddMember(groupID, userID string) error
	RemoveMember(groupID, userID string) error
}

// GroupService mutates durable group membership and mirrors each change
// into the live room index in the same call. Removing a member must evict
// their connections from the room's delivery set synchronously with the
// removal action, never lazily.
type GroupService struct {
	groups     repositories.IGroupRepository
	controller *realtime.Controller
}

func NewGroupService(groups repositories.IGroupRepository, controller *realtime.Controller) *GroupService {
	return &GroupService{groups: groups, controller: controller}
}

func (s *GroupService) CreateGroup(name, ownerID string) (repositories.Group, error) {
	group, err := s.groups.CreateGroup(name, ownerID)
	if err != nil {
		return repositories.Group{}, err
	}
	s.controller.AdmitToGroup(group.ID, ownerID)
	return group, nil
}

func (s *GroupService) AddMember(groupID, userID string) error {
	if err := s.groups.AddMember(groupID, userID); err != nil {
		return err
	}
	s.controller.AdmitToGroup(groupID, userID)
	return nil
}

func (s *GroupService) RemoveMember(groupID, userID string) error {
	if err := s.groups.RemoveMember(groupID, userID); err != nil {
		return err
	}
	s.controller.EvictFromGroup(groupID, userID)
	return nil
}
