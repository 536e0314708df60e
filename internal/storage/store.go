package storage

import (
	"context"
	"time"

	"messagely/internal/storage/zapadapter"

	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

// Store defines fields used in db interaction processes
type Store struct {
	logger *zap.SugaredLogger
	db     *pgxpool.Pool
}

// New sets provided zap.Logger via zapadapter to pgxpool.Pool and returns instance of Store struct
func New(ctx context.Context, logger *zap.SugaredLogger, cfg Config, opts ...Option) (*Store, error) {
	config, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}

	for _, opt := range opts {
		opt.apply(config)
	}

	config.ConnConfig.Logger = zapadapter.NewLogger(logger.Desugar())
	config.ConnConfig.LogLevel = pgx.LogLevelWarn

	pool, err := pgxpool.ConnectConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	return &Store{
		logger: logger,
		db:     pool,
	}, nil
}

// Close closes all connections in the pool
func (s *Store) Close() {
	s.db.Close()
}

// Ping acquires a connection and checks the database answers
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// CreateUser inserts a user row, join and last login timestamps are set by the database.
// A taken username yields an IntegrityError of kind UniqueViolation.
func (s *Store) CreateUser(ctx context.Context, u NewUser) (UserSummary, error) {
	s.logger.Debugf("Creating user (%s)", u.Username)

	var created UserSummary
	sql := `insert into users (username, password, first_name, last_name, phone, join_at, last_login_at)
			values ($1, $2, $3, $4, $5, current_timestamp, current_timestamp)
			returning username, first_name, last_name, phone`
	err := s.db.QueryRow(ctx, sql, u.Username, u.PasswordHash, u.FirstName, u.LastName, u.Phone).
		Scan(&created.Username, &created.FirstName, &created.LastName, &created.Phone)
	if err != nil {
		return UserSummary{}, classify(err)
	}

	s.logger.Debugf("Created user (%s)", created.Username)
	return created, nil
}

// PasswordHash returns the stored password hash of the user
func (s *Store) PasswordHash(ctx context.Context, username string) (string, error) {
	var hash string
	sql := "select password from users where username = $1"
	if err := s.db.QueryRow(ctx, sql, username).Scan(&hash); err != nil {
		return "", classify(err)
	}

	return hash, nil
}

// TouchLastLogin sets last_login_at of the user to the current time
func (s *Store) TouchLastLogin(ctx context.Context, username string) error {
	sql := "update users set last_login_at = current_timestamp where username = $1"
	tag, err := s.db.Exec(ctx, sql, username)
	if err != nil {
		return classify(err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// User returns the profile of the user
func (s *Store) User(ctx context.Context, username string) (User, error) {
	var u User
	sql := `select username, first_name, last_name, phone, join_at, last_login_at
			  from users
			 where username = $1`
	err := s.db.QueryRow(ctx, sql, username).
		Scan(&u.Username, &u.FirstName, &u.LastName, &u.Phone, &u.JoinAt, &u.LastLoginAt)
	if err != nil {
		return User{}, classify(err)
	}

	return u, nil
}

// Users returns basic info on all users in no particular order
func (s *Store) Users(ctx context.Context) ([]UserSummary, error) {
	rows, err := s.db.Query(ctx, "select username, first_name, last_name, phone from users")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]UserSummary, 0)
	for rows.Next() {
		var u UserSummary
		if err := rows.Scan(&u.Username, &u.FirstName, &u.LastName, &u.Phone); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.logger.Debugf("Retrieved %d users", len(users))
	return users, nil
}

// CreateMessage inserts a message with sent_at set by the database and read_at left null.
// An unknown participant yields an IntegrityError of kind ForeignKeyViolation.
func (s *Store) CreateMessage(ctx context.Context, from, to, body string) (Message, error) {
	s.logger.Debugf("Creating message from user (%s) to user (%s)", from, to)

	var (
		m      Message
		readAt pgtype.Timestamptz
	)
	sql := `insert into messages (from_username, to_username, body, sent_at)
			values ($1, $2, $3, current_timestamp)
			returning id, from_username, to_username, body, sent_at, read_at`
	err := s.db.QueryRow(ctx, sql, from, to, body).
		Scan(&m.ID, &m.FromUsername, &m.ToUsername, &m.Body, &m.SentAt, &readAt)
	if err != nil {
		return Message{}, classify(err)
	}
	m.ReadAt = nullableTime(readAt)

	s.logger.Debugf("Created message with id %d", m.ID)
	return m, nil
}

// Message returns the message joined with both participants
func (s *Store) Message(ctx context.Context, id int64) (MessageDetail, error) {
	var (
		m      MessageDetail
		readAt pgtype.Timestamptz
	)
	sql := `select m.id, m.body, m.sent_at, m.read_at,
				   f.username, f.first_name, f.last_name, f.phone,
				   t.username, t.first_name, t.last_name, t.phone
			  from messages m
			  join users f
				on m.from_username = f.username
			  join users t
				on m.to_username = t.username
			 where m.id = $1`
	err := s.db.QueryRow(ctx, sql, id).Scan(
		&m.ID, &m.Body, &m.SentAt, &readAt,
		&m.FromUser.Username, &m.FromUser.FirstName, &m.FromUser.LastName, &m.FromUser.Phone,
		&m.ToUser.Username, &m.ToUser.FirstName, &m.ToUser.LastName, &m.ToUser.Phone,
	)
	if err != nil {
		return MessageDetail{}, classify(err)
	}
	m.ReadAt = nullableTime(readAt)

	return m, nil
}

// MessagesFrom returns messages sent by the user, each with its recipient embedded
func (s *Store) MessagesFrom(ctx context.Context, username string) ([]Correspondence, error) {
	s.logger.Debugf("Retrieving messages from user (%s)", username)

	sql := `select m.id, m.body, m.sent_at, m.read_at,
				   jsonb_build_object(
					   'username', u.username,
					   'first_name', u.first_name,
					   'last_name', u.last_name,
					   'phone', u.phone
				   ) as to_user
			  from messages m
			  join users u
				on m.to_username = u.username
			 where m.from_username = $1`

	return s.correspondence(ctx, sql, username, func(c *Correspondence, other *UserSummary) {
		c.ToUser = other
	})
}

// MessagesTo returns messages received by the user, each with its sender embedded
func (s *Store) MessagesTo(ctx context.Context, username string) ([]Correspondence, error) {
	s.logger.Debugf("Retrieving messages to user (%s)", username)

	sql := `select m.id, m.body, m.sent_at, m.read_at,
				   jsonb_build_object(
					   'username', u.username,
					   'first_name', u.first_name,
					   'last_name', u.last_name,
					   'phone', u.phone
				   ) as from_user
			  from messages m
			  join users u
				on m.from_username = u.username
			 where m.to_username = $1`

	return s.correspondence(ctx, sql, username, func(c *Correspondence, other *UserSummary) {
		c.FromUser = other
	})
}

func (s *Store) correspondence(ctx context.Context, sql, username string, attach func(*Correspondence, *UserSummary)) ([]Correspondence, error) {
	rows, err := s.db.Query(ctx, sql, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]Correspondence, 0)
	for rows.Next() {
		var (
			c      Correspondence
			readAt pgtype.Timestamptz
			other  pgtype.JSONB
		)
		if err := rows.Scan(&c.ID, &c.Body, &c.SentAt, &readAt, &other); err != nil {
			return nil, err
		}
		c.ReadAt = nullableTime(readAt)

		var participant UserSummary
		if err := other.AssignTo(&participant); err != nil {
			return nil, err
		}
		attach(&c, &participant)

		messages = append(messages, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.logger.Debugf("Retrieved %d messages", len(messages))
	return messages, nil
}

// MarkRead sets read_at of the message unless it is already set and returns the stored value
func (s *Store) MarkRead(ctx context.Context, id int64) (ReadReceipt, error) {
	var r ReadReceipt
	sql := `update messages
			   set read_at = coalesce(read_at, current_timestamp)
			 where id = $1
			returning id, read_at`
	if err := s.db.QueryRow(ctx, sql, id).Scan(&r.ID, &r.ReadAt); err != nil {
		return ReadReceipt{}, classify(err)
	}

	return r, nil
}

func nullableTime(ts pgtype.Timestamptz) *time.Time {
	if ts.Status != pgtype.Present {
		return nil
	}
	t := ts.Time
	return &t
}
