package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"github.com/weiawesome/amen-live/internal/config"
	"github.com/weiawesome/amen-live/internal/domain"
)

const cassandraChatTable = `
	CREATE TABLE IF NOT EXISTS chat_messages_by_room (
		room_id         text,
		created_at      timestamp,
		message_id      text,
		sender_role     text,
		sender_name     text,
		original_text   text,
		translated_text text,
		source_lang     text,
		target_lang     text,
		PRIMARY KEY ((room_id), created_at, message_id)
	) WITH CLUSTERING ORDER BY (created_at DESC, message_id ASC)`

// CassandraChatStore implements ChatStore on a wide-row table partitioned by
// room.
type CassandraChatStore struct {
	session *gocql.Session
}

// NewCassandraSession connects to the cluster described by cfg.
func NewCassandraSession(cfg config.CassandraConfig) (*gocql.Session, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = parseConsistency(cfg.Consistency)
	if cfg.Timeout > 0 {
		cluster.Timeout = cfg.Timeout
		cluster.ConnectTimeout = cfg.Timeout
	}

	if cfg.Username != "" && cfg.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	retries := cfg.NumRetries
	if retries <= 0 {
		retries = 3
	}
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: retries,
		Min:        100 * time.Millisecond,
		Max:        2 * time.Second,
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create Cassandra session: %w", err)
	}
	return session, nil
}

// NewCassandraChatStore creates the message table if needed and returns the
// store.
func NewCassandraChatStore(ctx context.Context, session *gocql.Session) (*CassandraChatStore, error) {
	if err := session.Query(cassandraChatTable).WithContext(ctx).Exec(); err != nil {
		return nil, fmt.Errorf("failed to ensure chat table: %w", err)
	}
	return &CassandraChatStore{session: session}, nil
}

// InsertMessage stores msg, assigning an id and timestamp when missing.
func (s *CassandraChatStore) InsertMessage(ctx context.Context, msg *domain.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO chat_messages_by_room (
			room_id, created_at, message_id, sender_role, sender_name,
			original_text, translated_text, source_lang, target_lang
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	err := s.session.Query(query,
		msg.RoomID,
		msg.CreatedAt,
		msg.ID,
		string(msg.SenderRole),
		msg.SenderName,
		msg.OriginalText,
		msg.TranslatedText,
		msg.SourceLang,
		msg.TargetLang,
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("failed to save chat message: %w", err)
	}
	return nil
}

// ListRoomMessages returns up to limit messages of roomID, oldest first.
func (s *CassandraChatStore) ListRoomMessages(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}

	iter := s.session.Query(`
		SELECT message_id, created_at, sender_role, sender_name,
			original_text, translated_text, source_lang, target_lang
		FROM chat_messages_by_room WHERE room_id = ? LIMIT ?`,
		roomID, limit,
	).WithContext(ctx).Iter()

	var (
		msgs []domain.ChatMessage
		msg  domain.ChatMessage
		role string
	)
	for iter.Scan(&msg.ID, &msg.CreatedAt, &role, &msg.SenderName,
		&msg.OriginalText, &msg.TranslatedText, &msg.SourceLang, &msg.TargetLang) {
		msg.RoomID = roomID
		msg.SenderRole = domain.ChatRole(role)
		msgs = append(msgs, msg)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}

	// rows come back newest first
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Close closes the Cassandra session.
func (s *CassandraChatStore) Close() {
	if s.session != nil {
		s.session.Close()
	}
}

func parseConsistency(s string) gocql.Consistency {
	switch strings.ToUpper(s) {
	case "ANY":
		return gocql.Any
	case "ONE":
		return gocql.One
	case "TWO":
		return gocql.Two
	case "QUORUM":
		return gocql.Quorum
	case "ALL":
		return gocql.All
	case "LOCAL_ONE":
		return gocql.LocalOne
	case "EACH_QUORUM":
		return gocql.EachQuorum
	default:
		return gocql.LocalQuorum
	}
}
