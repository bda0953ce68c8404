//go:generate go run go.uber.org/mock/mockgen -source=messages.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"campushub/domain"
	"campushub/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IMessageRepository interface {
	CreateMessage(m domain.Message) (domain.Message, error)
	GetMessages(room domain.Room, cursor *string) ([]domain.Message, *string, error)
	MarkDelivered(messageID, userID string) (domain.Message, error)
	MarkRead(messageID, userID string) (domain.Message, error)
	FindConversationPartners(userID string) ([]string, error)
}

// MessageRepository persists messages in BadgerDB. Keys:
//
//	msg:{roomID}:{timestamp_padded}:{uuid} -> JSON document
//	msgref:{uuid}                          -> primary key (marker updates)
//	partner:{a}:{b}                        -> nil (conversation index, both directions)
//
// The 19-digit zero-padded nanosecond timestamp makes lexicographic order
// chronological; the trailing UUID disambiguates same-nanosecond arrivals.
type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) *MessageRepository {
	return &MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

func messageKey(m domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", m.Room().ID(), m.CreatedAt.UnixNano(), m.ID))
}

func refKey(id uuid.UUID) []byte { return []byte("msgref:" + id.String()) }

func partnerKey(a, b string) []byte { return []byte("partner:" + a + ":" + b) }

// CreateMessage assigns identity and timestamp, persists the document, and
// returns the stored form. Dispatch must only happen after this returns.
func (r *MessageRepository) CreateMessage(m domain.Message) (domain.Message, error) {
	m.ID = uuid.New()
	m.CreatedAt = time.Now().UTC()
	if m.MessageType == "" {
		m.MessageType = "text"
	}
	m.Status = domain.DeliverySent

	key := messageKey(m)
	data, err := json.Marshal(m)
	if err != nil {
		return domain.Message{}, err
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return err
		}
		if err := txn.Set(refKey(m.ID), key); err != nil {
			return err
		}
		// Direct messages feed the conversation-partner index both ways.
		if m.RecipientID != "" && m.SenderID != "" {
			if err := txn.Set(partnerKey(m.SenderID, m.RecipientID), nil); err != nil {
				return err
			}
			return txn.Set(partnerKey(m.RecipientID, m.SenderID), nil)
		}
		return nil
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return m, nil
}

// GetMessages pages backwards through a room's history. A nil cursor starts
// from the newest message; the returned cursor resumes the scan.
func (r *MessageRepository) GetMessages(room domain.Room, cursor *string) ([]domain.Message, *string, error) {
	var raw [][]byte
	var lastKey string
	prefixStr := "msg:" + room.ID() + ":"
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past every real timestamp, then walk backwards.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if r.limitMessages != nil && len(raw) == *r.limitMessages {
				r.log.Debug("message page limit reached", "limit", *r.limitMessages)
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefixStr):])
			err := item.Value(func(value []byte) error {
				raw = append(raw, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var messages []domain.Message
	for _, b := range raw {
		var m domain.Message
		if err = json.Unmarshal(b, &m); err != nil {
			return nil, nil, err
		}
		messages = append(messages, m)
	}
	return messages, &lastKey, nil
}

// MarkDelivered records userID in the delivery markers and upgrades the
// stored status. Idempotent per user.
func (r *MessageRepository) MarkDelivered(messageID, userID string) (domain.Message, error) {
	return r.updateMarkers(messageID, func(m *domain.Message) {
		if !lo.Contains(m.DeliveredTo, userID) {
			m.DeliveredTo = append(m.DeliveredTo, userID)
		}
		if m.Status == domain.DeliverySent {
			m.Status = domain.DeliveryDelivered
		}
	})
}

// MarkRead records userID in the read markers. Reading implies delivery.
func (r *MessageRepository) MarkRead(messageID, userID string) (domain.Message, error) {
	return r.updateMarkers(messageID, func(m *domain.Message) {
		if !lo.Contains(m.DeliveredTo, userID) {
			m.DeliveredTo = append(m.DeliveredTo, userID)
		}
		if !lo.Contains(m.ReadBy, userID) {
			m.ReadBy = append(m.ReadBy, userID)
		}
		m.Status = domain.DeliveryRead
	})
}

func (r *MessageRepository) updateMarkers(messageID string, mutate func(*domain.Message)) (domain.Message, error) {
	id, err := uuid.Parse(messageID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrNotFound, err)
	}
	var message domain.Message
	err = r.db.Update(func(txn *badger.Txn) error {
		ref, err := txn.Get(refKey(id))
		if err != nil {
			return mapStoreErr(err)
		}
		var key []byte
		if err := ref.Value(func(val []byte) error {
			key = append([]byte(nil), val...)
			return nil
		}); err != nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			return mapStoreErr(err)
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &message)
		}); err != nil {
			return err
		}
		mutate(&message)
		data, err := json.Marshal(message)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

// FindConversationPartners prefix-scans the partner index for a user.
func (r *MessageRepository) FindConversationPartners(userID string) ([]string, error) {
	var partners []string
	prefix := []byte("partner:" + userID + ":")
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			partners = append(partners, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	return partners, err
}
