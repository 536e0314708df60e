// Package ledger owns messages between users and decides who may read them
// and who may mark them as read.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"messagely/internal/common"
	"messagely/internal/storage"

	"go.uber.org/zap"
)

// Store is the part of storage.Store used by Ledger
type Store interface {
	CreateMessage(ctx context.Context, from, to, body string) (storage.Message, error)
	Message(ctx context.Context, id int64) (storage.MessageDetail, error)
	MessagesFrom(ctx context.Context, username string) ([]storage.Correspondence, error)
	MessagesTo(ctx context.Context, username string) ([]storage.Correspondence, error)
	MarkRead(ctx context.Context, id int64) (storage.ReadReceipt, error)
}

// CanView reports whether caller may read m: only its sender and recipient can
func CanView(m storage.MessageDetail, caller string) bool {
	return caller != "" && (caller == m.FromUser.Username || caller == m.ToUser.Username)
}

// CanMarkRead reports whether caller may mark m as read: only its recipient can
func CanMarkRead(m storage.MessageDetail, caller string) bool {
	return caller != "" && caller == m.ToUser.Username
}

// Ledger creates and reads messages on behalf of authenticated users
type Ledger struct {
	logger *zap.SugaredLogger
	store  Store
}

func New(logger *zap.SugaredLogger, store Store) *Ledger {
	return &Ledger{
		logger: logger,
		store:  store,
	}
}

// Create stores a message from one user to another
func (l *Ledger) Create(ctx context.Context, from, to, body string) (storage.Message, error) {
	m, err := l.store.CreateMessage(ctx, from, to, body)
	if err != nil {
		if storage.IsIntegrity(err, storage.ForeignKeyViolation) {
			return storage.Message{}, fmt.Errorf("user %q: %w", to, common.ErrUnknownRecipient)
		}
		return storage.Message{}, fmt.Errorf("l.store.CreateMessage: %w", err)
	}

	l.logger.Debugf("Message %d sent from (%s) to (%s)", m.ID, from, to)
	return m, nil
}

// Get returns message id if caller is its sender or recipient
func (l *Ledger) Get(ctx context.Context, caller string, id int64) (storage.MessageDetail, error) {
	m, err := l.lookup(ctx, id)
	if err != nil {
		return storage.MessageDetail{}, err
	}

	if !CanView(m, caller) {
		return storage.MessageDetail{}, fmt.Errorf("message %d not from or to %s: %w", id, caller, common.ErrUnauthorized)
	}

	return m, nil
}

// MessagesFrom returns messages sent by username
func (l *Ledger) MessagesFrom(ctx context.Context, username string) ([]storage.Correspondence, error) {
	messages, err := l.store.MessagesFrom(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("l.store.MessagesFrom: %w", err)
	}
	return messages, nil
}

// MessagesTo returns messages received by username
func (l *Ledger) MessagesTo(ctx context.Context, username string) ([]storage.Correspondence, error) {
	messages, err := l.store.MessagesTo(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("l.store.MessagesTo: %w", err)
	}
	return messages, nil
}

// MarkRead records that the recipient read message id. The read time is set once,
// marking an already read message returns the original time.
func (l *Ledger) MarkRead(ctx context.Context, caller string, id int64) (storage.ReadReceipt, error) {
	m, err := l.lookup(ctx, id)
	if err != nil {
		return storage.ReadReceipt{}, err
	}

	if !CanMarkRead(m, caller) {
		return storage.ReadReceipt{}, fmt.Errorf("message %d not to %s: %w", id, caller, common.ErrUnauthorized)
	}

	r, err := l.store.MarkRead(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.ReadReceipt{}, fmt.Errorf("message %d: %w", id, common.ErrNotFound)
		}
		return storage.ReadReceipt{}, fmt.Errorf("l.store.MarkRead: %w", err)
	}

	return r, nil
}

func (l *Ledger) lookup(ctx context.Context, id int64) (storage.MessageDetail, error) {
	m, err := l.store.Message(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.MessageDetail{}, fmt.Errorf("message %d: %w", id, common.ErrNotFound)
		}
		return storage.MessageDetail{}, fmt.Errorf("l.store.Message: %w", err)
	}
	return m, nil
}
