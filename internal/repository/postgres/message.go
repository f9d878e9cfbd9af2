package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/bookshare/internal/models"
)

type MessageStore struct {
	db DBTX
}

func NewMessageStore(db DBTX) *MessageStore {
	return &MessageStore{db: db}
}

const messageColumns = `m.id, m.sender_id, m.receiver_id, m.book_id, m.borrow_request_id,
	m.content, m.read, m.created_at`

func messageDest(m *models.Message) []any {
	return []any{
		&m.ID,
		&m.SenderID,
		&m.ReceiverID,
		&m.BookID,
		&m.BorrowRequestID,
		&m.Content,
		&m.Read,
		&m.CreatedAt,
	}
}

func (s *MessageStore) Create(ctx context.Context, m *models.Message) error {
	query := `
		WITH m AS (
			INSERT INTO messages (sender_id, receiver_id, book_id, borrow_request_id, content)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING *
		)
		SELECT ` + messageColumns + ` FROM m`

	var created models.Message
	err := s.db.QueryRow(ctx, query,
		m.SenderID, m.ReceiverID, m.BookID, m.BorrowRequestID, m.Content,
	).Scan(messageDest(&created)...)
	if err != nil {
		return wrapWrite("insert message", err)
	}
	*m = created
	return nil
}

// ListThread returns the conversation between a and b, oldest first. The
// pair is unordered: both directions are included.
func (s *MessageStore) ListThread(ctx context.Context, a, b uuid.UUID, bookID *uuid.UUID) ([]models.MessageView, error) {
	query := `
		SELECT ` + messageColumns + `, u.name, u.avatar_url
		FROM messages m JOIN users u ON m.sender_id = u.id
		WHERE ((m.sender_id = $1 AND m.receiver_id = $2) OR (m.sender_id = $2 AND m.receiver_id = $1))`
	args := []any{a, b}
	if bookID != nil {
		query += ` AND m.book_id = $3`
		args = append(args, *bookID)
	}
	query += ` ORDER BY m.created_at ASC, m.id`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list thread: %w", err)
	}
	defer rows.Close()

	messages := make([]models.MessageView, 0)
	for rows.Next() {
		var v models.MessageView
		dest := append(messageDest(&v.Message), &v.SenderName, &v.SenderAvatar)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// MarkRead only flips incoming messages: receiver is the reader, sender is
// the counterpart. The reader's own outgoing messages are never touched.
func (s *MessageStore) MarkRead(ctx context.Context, receiverID, senderID uuid.UUID) (int64, error) {
	query := `
		UPDATE messages SET read = TRUE
		WHERE receiver_id = $1 AND sender_id = $2 AND read = FALSE`

	tag, err := s.db.Exec(ctx, query, receiverID, senderID)
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListConversations picks the latest message per counterpart with
// DISTINCT ON, then sorts the inbox newest first.
func (s *MessageStore) ListConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	query := `
		WITH latest AS (
			SELECT DISTINCT ON (other_id) ` + messageColumns + `, other_id
			FROM (
				SELECT m.*, CASE WHEN m.sender_id = $1 THEN m.receiver_id ELSE m.sender_id END AS other_id
				FROM messages m
				WHERE m.sender_id = $1 OR m.receiver_id = $1
			) m
			ORDER BY other_id, m.created_at DESC, m.id DESC
		)
		SELECT l.id, l.sender_id, l.receiver_id, l.book_id, l.borrow_request_id, l.content, l.read,
		       l.created_at, l.other_id, u.name, u.avatar_url, COALESCE(b.title, ''),
		       (SELECT COUNT(*) FROM messages x
		        WHERE x.receiver_id = $1 AND x.sender_id = l.other_id AND x.read = FALSE)
		FROM latest l
		JOIN users u ON u.id = l.other_id
		LEFT JOIN books b ON b.id = l.book_id
		ORDER BY l.created_at DESC`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return conversations, nil
}

func scanConversation(row pgx.Row) (models.Conversation, error) {
	var c models.Conversation
	dest := append(messageDest(&c.LastMessage),
		&c.OtherID, &c.OtherName, &c.OtherAvatar, &c.BookTitle, &c.UnreadCount)
	err := row.Scan(dest...)
	return c, err
}

func (s *MessageStore) CountUnread(ctx context.Context, receiverID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND read = FALSE`

	var count int
	if err := s.db.QueryRow(ctx, query, receiverID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}
