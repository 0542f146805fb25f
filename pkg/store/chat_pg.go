package store

import (
	"context"
	"database/sql"

	"github.com/jechocarlos/queenbee/pkg/models"
)

// PostgresChatStore implements ChatStore on top of the chat_history table.
type PostgresChatStore struct {
	db *sql.DB
}

func NewPostgresChatStore(db *sql.DB) *PostgresChatStore {
	return &PostgresChatStore{db: db}
}

func (s *PostgresChatStore) Append(ctx context.Context, sessionID string, role models.MessageRole, content string) (*models.ChatMessage, error) {
	msg := &models.ChatMessage{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
	}
	err := retryOnce(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`INSERT INTO chat_history (session_id, role, content)
			 VALUES ($1, $2, $3)
			 RETURNING id, created_at`,
			sessionID, role, content,
		).Scan(&msg.ID, &msg.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *PostgresChatStore) History(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	query := `SELECT id, session_id, role, content, created_at
		 FROM chat_history WHERE session_id = $1 ORDER BY id ASC`
	args := []any{sessionID}
	if limit > 0 {
		// Window the most recent messages but keep chronological order.
		query = `SELECT id, session_id, role, content, created_at FROM (
			SELECT id, session_id, role, content, created_at
			FROM chat_history WHERE session_id = $1 ORDER BY id DESC LIMIT $2
		) recent ORDER BY id ASC`
		args = append(args, limit)
	}

	var messages []models.ChatMessage
	err := retryOnce(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		messages = messages[:0]
		for rows.Next() {
			var m models.ChatMessage
			if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
				return err
			}
			messages = append(messages, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}
