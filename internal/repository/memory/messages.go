package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/bookshare/internal/models"
)

type messageRepo struct{ access }

func (r messageRepo) Create(_ context.Context, m *models.Message) error {
	return r.with(func(st *state, now time.Time) error {
		m.ID = uuid.New()
		m.Read = false
		m.CreatedAt = now
		st.messages.put(m.ID, *m)
		return nil
	})
}

func between(m models.Message, a, b uuid.UUID) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

func (r messageRepo) ListThread(_ context.Context, a, b uuid.UUID, bookID *uuid.UUID) ([]models.MessageView, error) {
	out := make([]models.MessageView, 0)
	err := r.with(func(st *state, _ time.Time) error {
		for _, m := range st.messages.ascending() {
			if !between(m, a, b) {
				continue
			}
			if bookID != nil && (m.BookID == nil || *m.BookID != *bookID) {
				continue
			}
			sender, _ := st.users.get(m.SenderID)
			out = append(out, models.MessageView{
				Message:      m,
				SenderName:   sender.Name,
				SenderAvatar: sender.AvatarURL,
			})
		}
		return nil
	})
	return out, err
}

func (r messageRepo) MarkRead(_ context.Context, receiverID, senderID uuid.UUID) (int64, error) {
	var n int64
	err := r.with(func(st *state, _ time.Time) error {
		for _, m := range st.messages.ascending() {
			if m.ReceiverID == receiverID && m.SenderID == senderID && !m.Read {
				m.Read = true
				st.messages.put(m.ID, m)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r messageRepo) ListConversations(_ context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	out := make([]models.Conversation, 0)
	err := r.with(func(st *state, _ time.Time) error {
		unread := make(map[uuid.UUID]int)
		for _, m := range st.messages.rows {
			if m.ReceiverID == userID && !m.Read {
				unread[m.SenderID]++
			}
		}
		seen := make(map[uuid.UUID]bool)
		for _, m := range st.messages.descending() {
			var other uuid.UUID
			switch userID {
			case m.SenderID:
				other = m.ReceiverID
			case m.ReceiverID:
				other = m.SenderID
			default:
				continue
			}
			if seen[other] {
				continue
			}
			seen[other] = true
			u, _ := st.users.get(other)
			c := models.Conversation{
				LastMessage: m,
				OtherID:     other,
				OtherName:   u.Name,
				OtherAvatar: u.AvatarURL,
				UnreadCount: unread[other],
			}
			if m.BookID != nil {
				b, _ := st.books.get(*m.BookID)
				c.BookTitle = b.Title
			}
			out = append(out, c)
		}
		return nil
	})
	return out, err
}

func (r messageRepo) CountUnread(_ context.Context, receiverID uuid.UUID) (int, error) {
	n := 0
	err := r.with(func(st *state, _ time.Time) error {
		for _, m := range st.messages.rows {
			if m.ReceiverID == receiverID && !m.Read {
				n++
			}
		}
		return nil
	})
	return n, err
}
