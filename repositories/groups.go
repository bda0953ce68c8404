//go:generate go run go.uber.org/mock/mockgen -source=groups.go -destination=../mocks/mock_group_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"time"

	"campushub/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IGroupRepository interface {
	CreateGroup(name, ownerID string) (Group, error)
	GetGroup(groupID string) (Group, error)
	AddMember(groupID, userID string) error
	RemoveMember(groupID, userID string) error
	FindGroupsByMember(userID string) ([]domain.GroupRef, error)
	IsGroupMember(groupID, userID string) (bool, error)
}

// Group is the stored document. Keys:
//
//	grp:{id}                    -> JSON document
//	grpmember:{userID}:{groupID} -> group name (membership index, prefix-scanned per user)
type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
}

type GroupRepository struct {
	db *badger.DB
}

func NewGroupRepository(db *badger.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

func groupKey(id string) []byte { return []byte("grp:" + id) }

func memberKey(userID, groupID string) []byte {
	return []byte("grpmember:" + userID + ":" + groupID)
}

// CreateGroup persists a group with the owner as its first member.
func (r *GroupRepository) CreateGroup(name, ownerID string) (Group, error) {
	group := Group{
		ID:        uuid.NewString(),
		Name:      name,
		OwnerID:   ownerID,
		Members:   []string{ownerID},
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(group)
	if err != nil {
		return Group{}, err
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(groupKey(group.ID), data); err != nil {
			return err
		}
		return txn.Set(memberKey(ownerID, group.ID), []byte(group.Name))
	})
	return group, err
}

func (r *GroupRepository) GetGroup(groupID string) (Group, error) {
	var group Group
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(groupKey(groupID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &group)
		})
	})
	if err != nil {
		return Group{}, mapStoreErr(err)
	}
	return group, nil
}

// AddMember writes the member into the document and the per-user index
// in one transaction. Idempotent.
func (r *GroupRepository) AddMember(groupID, userID string) error {
	return r.updateGroup(groupID, func(g *Group) error {
		if !lo.Contains(g.Members, userID) {
			g.Members = append(g.Members, userID)
		}
		return nil
	}, func(txn *badger.Txn, g Group) error {
		return txn.Set(memberKey(userID, groupID), []byte(g.Name))
	})
}

// RemoveMember drops the member from the document and the index in one
// transaction, so a subsequent FindGroupsByMember no longer sees the group.
func (r *GroupRepository) RemoveMember(groupID, userID string) error {
	return r.updateGroup(groupID, func(g *Group) error {
		g.Members = lo.Without(g.Members, userID)
		return nil
	}, func(txn *badger.Txn, _ Group) error {
		return txn.Delete(memberKey(userID, groupID))
	})
}

func (r *GroupRepository) updateGroup(groupID string, mutate func(*Group) error,
	index func(*badger.Txn, Group) error) error {
	return r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(groupKey(groupID))
		if err != nil {
			return mapStoreErr(err)
		}
		var group Group
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &group)
		}); err != nil {
			return err
		}
		if err := mutate(&group); err != nil {
			return err
		}
		data, err := json.Marshal(group)
		if err != nil {
			return err
		}
		if err := txn.Set(groupKey(groupID), data); err != nil {
			return err
		}
		return index(txn, group)
	})
}

// FindGroupsByMember prefix-scans the per-user membership index.
func (r *GroupRepository) FindGroupsByMember(userID string) ([]domain.GroupRef, error) {
	var refs []domain.GroupRef
	prefix := []byte("grpmember:" + userID + ":")
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			groupID := string(item.Key()[len(prefix):])
			err := item.Value(func(val []byte) error {
				refs = append(refs, domain.GroupRef{ID: groupID, Name: string(val)})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return refs, err
}

func (r *GroupRepository) IsGroupMember(groupID, userID string) (bool, error) {
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(memberKey(userID, groupID))
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
