package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store exposes the query methods the handlers use. All identifiers are UUID
// strings; nullable room names map to *string.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps a connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// UserRow mirrors one row of the users table.
type UserRow struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// ChatRoomRow mirrors one chat room together with its participant set.
type ChatRoomRow struct {
	ID           string
	Name         *string
	Kind         string
	CreatedAt    time.Time
	LastUpdated  time.Time
	Participants []string
}

// MessageRow mirrors one row of the messages table.
type MessageRow struct {
	ID       string
	ChatID   string
	SenderID string
	Content  string
	SentAt   time.Time
}

// CreateUser inserts a new account.
func (s *Store) CreateUser(ctx context.Context, id, username, passwordHash string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, username, password_hash) VALUES ($1, $2, $3)`,
		id, username, passwordHash,
	)
	return err
}

// GetUserByUsername fetches an account by its unique username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (UserRow, error) {
	var u UserRow
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, username, password_hash, created_at FROM users WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

// GetUserByID fetches an account by id.
func (s *Store) GetUserByID(ctx context.Context, id string) (UserRow, error) {
	var u UserRow
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, username, password_hash, created_at FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

// CreateChatRoom inserts a room and its participant set in one transaction.
func (s *Store) CreateChatRoom(ctx context.Context, room ChatRoomRow) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO chat_rooms (id, name, kind, created_at, last_updated) VALUES ($1, $2, $3, $4, $4)`,
		room.ID, room.Name, room.Kind, room.LastUpdated,
	)
	if err != nil {
		return err
	}

	for _, userID := range room.Participants {
		if _, err := tx.Exec(ctx,
			`INSERT INTO chat_participants (chat_id, user_id) VALUES ($1, $2)`,
			room.ID, userID,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// FindPersonalRoomBetween returns the id of an existing personal room shared
// by the two users, or pgx.ErrNoRows.
func (s *Store) FindPersonalRoomBetween(ctx context.Context, userA, userB string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`SELECT r.id::text
		   FROM chat_rooms r
		   JOIN chat_participants a ON a.chat_id = r.id AND a.user_id = $1
		   JOIN chat_participants b ON b.chat_id = r.id AND b.user_id = $2
		  WHERE r.kind = 'personal'
		  LIMIT 1`,
		userA, userB,
	).Scan(&id)
	return id, err
}

// GetChatRoom fetches a room and its participants.
func (s *Store) GetChatRoom(ctx context.Context, id string) (ChatRoomRow, error) {
	var room ChatRoomRow
	err := s.pool.QueryRow(ctx,
		`SELECT r.id::text, r.name, r.kind, r.created_at, r.last_updated,
		        array_agg(p.user_id::text) AS participants
		   FROM chat_rooms r
		   JOIN chat_participants p ON p.chat_id = r.id
		  WHERE r.id = $1
		  GROUP BY r.id`,
		id,
	).Scan(&room.ID, &room.Name, &room.Kind, &room.CreatedAt, &room.LastUpdated, &room.Participants)
	return room, err
}

// ListRoomsByUser returns the rooms the user participates in, most recently
// updated first.
func (s *Store) ListRoomsByUser(ctx context.Context, userID string, limit int) ([]ChatRoomRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.id::text, r.name, r.kind, r.created_at, r.last_updated,
		        array_agg(p.user_id::text) AS participants
		   FROM chat_rooms r
		   JOIN chat_participants p ON p.chat_id = r.id
		  WHERE r.id IN (
		        SELECT chat_id FROM chat_participants WHERE user_id = $1
		  )
		  GROUP BY r.id
		  ORDER BY r.last_updated DESC
		  LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChatRoomRow
	for rows.Next() {
		var room ChatRoomRow
		if err := rows.Scan(&room.ID, &room.Name, &room.Kind, &room.CreatedAt, &room.LastUpdated, &room.Participants); err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

// TouchRoom advances a room's last_updated timestamp. Older timestamps are
// ignored so concurrent writers cannot move a room backwards.
func (s *Store) TouchRoom(ctx context.Context, chatID string, ts time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE chat_rooms SET last_updated = $2 WHERE id = $1 AND last_updated < $2`,
		chatID, ts,
	)
	return err
}

// InsertMessage persists a message.
func (s *Store) InsertMessage(ctx context.Context, m MessageRow) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (id, chat_id, sender_id, content, sent_at) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.ChatID, m.SenderID, m.Content, m.SentAt,
	)
	return err
}

// ListMessages returns the newest messages of a room, newest first. A non-zero
// before timestamp restricts the page to messages sent strictly earlier, so
// clients page back through history by passing the oldest sent_at they hold.
func (s *Store) ListMessages(ctx context.Context, chatID string, before time.Time, limit int) ([]MessageRow, error) {
	query := `SELECT id::text, chat_id::text, sender_id::text, content, sent_at
	   FROM messages
	  WHERE chat_id = $1
	  ORDER BY sent_at DESC
	  LIMIT $2`
	args := []any{chatID, limit}

	if !before.IsZero() {
		query = `SELECT id::text, chat_id::text, sender_id::text, content, sent_at
		   FROM messages
		  WHERE chat_id = $1 AND sent_at < $3
		  ORDER BY sent_at DESC
		  LIMIT $2`
		args = append(args, before)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MessageRow
	for rows.Next() {
		var m MessageRow
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.SentAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
