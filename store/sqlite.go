package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	memberAuth "github.com/MrEthical07/memberAuth"
	"github.com/MrEthical07/memberAuth/internal"
	"github.com/MrEthical07/memberAuth/permission"

	_ "modernc.org/sqlite"
)

// ErrDuplicateUsername is returned by Insert when the user name is taken.
var ErrDuplicateUsername = errors.New("store: username already exists")

const memberColumns = `m.member_id, m.user_name, m.email, m.first_name, m.last_name, m.password,
	m.account_state, m.membership_level, m.subscription_starts, m.last_accessed,
	m.last_accessed_from_ip, m.extra,
	COALESCE(l.subscription_period, 0), COALESCE(l.subscription_duration_type, '')`

const memberFrom = ` FROM members m LEFT JOIN membership_levels l ON l.id = m.membership_level`

// SQLiteStore implements memberAuth.MemberStore and memberAuth.SecretProvider
// using SQLite. Membership levels are kept alongside and loaded into a
// permission.TierManager with LoadTiers.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if dbPath == ":memory:" {
		// every new connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
		now:    time.Now,
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Members ---

// FindByUsername returns the member with the exact user name.
func (s *SQLiteStore) FindByUsername(ctx context.Context, username string) (*memberAuth.Member, error) {
	s.logger.Debug("sql", "op", "select", "table", "members", "user_name", username)
	return s.findOne(ctx, `m.user_name = ?`, username)
}

// FindByEmail matches the address case-insensitively.
func (s *SQLiteStore) FindByEmail(ctx context.Context, email string) (*memberAuth.Member, error) {
	s.logger.Debug("sql", "op", "select_by_email", "table", "members")
	if strings.TrimSpace(email) == "" {
		return nil, memberAuth.ErrMemberNotFound
	}
	return s.findOne(ctx, `m.email = ? COLLATE NOCASE`, email)
}

// FindByID returns the member with the given id.
func (s *SQLiteStore) FindByID(ctx context.Context, id int64) (*memberAuth.Member, error) {
	s.logger.Debug("sql", "op", "select", "table", "members", "id", id)
	return s.findOne(ctx, `m.member_id = ?`, id)
}

func (s *SQLiteStore) findOne(ctx context.Context, where string, arg any) (*memberAuth.Member, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memberColumns+memberFrom+` WHERE `+where+` LIMIT 1`, arg)
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, memberAuth.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select member: %w", err)
	}
	return m, nil
}

// ListMembers returns a page of members ordered by id, and the total count.
func (s *SQLiteStore) ListMembers(ctx context.Context, limit, offset int) ([]*memberAuth.Member, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "members", "limit", limit, "offset", offset)
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM members`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memberColumns+memberFrom+` ORDER BY m.member_id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var members []*memberAuth.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, 0, err
		}
		members = append(members, m)
	}
	return members, total, rows.Err()
}

// Insert stores m and returns its new id. m.ID is set on success.
func (s *SQLiteStore) Insert(ctx context.Context, m *memberAuth.Member) (int64, error) {
	s.logger.Debug("sql", "op", "insert", "table", "members", "user_name", m.Username)

	extraJSON, err := json.Marshal(extraOrEmpty(m.Extra))
	if err != nil {
		return 0, fmt.Errorf("marshal extra: %w", err)
	}
	state := m.State
	if state == "" {
		state = memberAuth.AccountActive
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO members (user_name, email, first_name, last_name, password, account_state,
		 membership_level, subscription_starts, last_accessed, last_accessed_from_ip, extra, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Username, m.Email, m.FirstName, m.LastName, m.PasswordHash, string(state),
		m.TierID, formatDate(m.SubscriptionStart), formatTime(m.LastAccessed), m.LastAccessedIP,
		string(extraJSON), s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateUsername, m.Username)
		}
		return 0, fmt.Errorf("insert member: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert member id: %w", err)
	}
	m.ID = id
	m.State = state
	return id, nil
}

// Update writes the non-nil fields of u.
func (s *SQLiteStore) Update(ctx context.Context, id int64, u memberAuth.MemberUpdate) error {
	s.logger.Debug("sql", "op", "update", "table", "members", "id", id)

	var sets []string
	var args []any
	if u.State != nil {
		sets = append(sets, "account_state = ?")
		args = append(args, string(*u.State))
	}
	if u.LastAccessed != nil {
		sets = append(sets, "last_accessed = ?")
		args = append(args, formatTime(*u.LastAccessed))
	}
	if u.LastAccessedIP != nil {
		sets = append(sets, "last_accessed_from_ip = ?")
		args = append(args, *u.LastAccessedIP)
	}
	if u.PasswordHash != nil {
		sets = append(sets, "password = ?")
		args = append(args, *u.PasswordHash)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	result, err := s.db.ExecContext(ctx,
		`UPDATE members SET `+strings.Join(sets, ", ")+` WHERE member_id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update member %d: %w", id, err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("member %d: %w", id, memberAuth.ErrMemberNotFound)
	}
	return nil
}

// SetMembership moves a member to tierID with a subscription starting at
// start.
func (s *SQLiteStore) SetMembership(ctx context.Context, id, tierID int64, start time.Time) error {
	s.logger.Debug("sql", "op", "update_membership", "table", "members", "id", id, "level", tierID)

	result, err := s.db.ExecContext(ctx,
		`UPDATE members SET membership_level = ?, subscription_starts = ? WHERE member_id = ?`,
		tierID, formatDate(start), id)
	if err != nil {
		return fmt.Errorf("update membership %d: %w", id, err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("member %d: %w", id, memberAuth.ErrMemberNotFound)
	}
	return nil
}

// Delete removes the member.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	s.logger.Debug("sql", "op", "delete", "table", "members", "id", id)

	result, err := s.db.ExecContext(ctx, `DELETE FROM members WHERE member_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete member %d: %w", id, err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("member %d: %w", id, memberAuth.ErrMemberNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMember(row scanner) (*memberAuth.Member, error) {
	var m memberAuth.Member
	var state, starts, lastAccessed, extraJSON, unit string
	err := row.Scan(&m.ID, &m.Username, &m.Email, &m.FirstName, &m.LastName, &m.PasswordHash,
		&state, &m.TierID, &starts, &lastAccessed, &m.LastAccessedIP, &extraJSON,
		&m.Subscription.Period, &unit)
	if err != nil {
		return nil, err
	}

	m.State = memberAuth.AccountState(state)
	m.Subscription.Unit = memberAuth.DurationUnit(unit)
	if starts != "" {
		m.SubscriptionStart, _ = time.Parse(time.DateOnly, starts)
	}
	if lastAccessed != "" {
		m.LastAccessed, _ = time.Parse(time.RFC3339Nano, lastAccessed)
	}
	if extraJSON != "" && extraJSON != "{}" {
		if err := json.Unmarshal([]byte(extraJSON), &m.Extra); err != nil {
			return nil, fmt.Errorf("unmarshal extra: %w", err)
		}
	}
	return &m, nil
}

// --- Membership levels ---

// Level is a stored membership level: the permission tier plus the
// subscription length its members get.
type Level struct {
	Tier         permission.Tier
	Subscription memberAuth.Duration
}

// UpsertLevel creates or replaces a membership level.
func (s *SQLiteStore) UpsertLevel(ctx context.Context, lvl Level) error {
	s.logger.Debug("sql", "op", "upsert", "table", "membership_levels", "id", lvl.Tier.ID)

	if lvl.Tier.ID <= 0 {
		return errors.New("store: level id must be positive")
	}
	capsJSON, err := json.Marshal(lvl.Tier.Capabilities)
	if err != nil {
		return fmt.Errorf("marshal capabilities: %w", err)
	}
	attrs := lvl.Tier.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO membership_levels (id, alias, role, subscription_period, subscription_duration_type, capabilities, attributes)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET alias = excluded.alias, role = excluded.role,
		 subscription_period = excluded.subscription_period,
		 subscription_duration_type = excluded.subscription_duration_type,
		 capabilities = excluded.capabilities, attributes = excluded.attributes`,
		lvl.Tier.ID, lvl.Tier.Alias, lvl.Tier.Role, lvl.Subscription.Period, string(lvl.Subscription.Unit),
		string(capsJSON), string(attrsJSON),
	)
	if err != nil {
		return fmt.Errorf("upsert level %d: %w", lvl.Tier.ID, err)
	}
	return nil
}

// ListLevels returns every stored level ordered by id.
func (s *SQLiteStore) ListLevels(ctx context.Context) ([]Level, error) {
	s.logger.Debug("sql", "op", "list", "table", "membership_levels")

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, alias, role, subscription_period, subscription_duration_type, capabilities, attributes
		 FROM membership_levels ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var levels []Level
	for rows.Next() {
		var lvl Level
		var unit, capsJSON, attrsJSON string
		if err := rows.Scan(&lvl.Tier.ID, &lvl.Tier.Alias, &lvl.Tier.Role,
			&lvl.Subscription.Period, &unit, &capsJSON, &attrsJSON); err != nil {
			return nil, err
		}
		lvl.Subscription.Unit = memberAuth.DurationUnit(unit)
		if err := json.Unmarshal([]byte(capsJSON), &lvl.Tier.Capabilities); err != nil {
			return nil, fmt.Errorf("unmarshal capabilities of level %d: %w", lvl.Tier.ID, err)
		}
		if err := json.Unmarshal([]byte(attrsJSON), &lvl.Tier.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshal attributes of level %d: %w", lvl.Tier.ID, err)
		}
		levels = append(levels, lvl)
	}
	return levels, rows.Err()
}

// LoadTiers registers every stored level with a new TierManager over
// registry. Capabilities unknown to registry are registered first, so
// registry must not be frozen when levels introduce new names. Both are
// frozen on return.
func (s *SQLiteStore) LoadTiers(ctx context.Context, registry *permission.Registry) (*permission.TierManager, error) {
	levels, err := s.ListLevels(ctx)
	if err != nil {
		return nil, err
	}

	for _, lvl := range levels {
		for _, name := range lvl.Tier.Capabilities {
			if _, ok := registry.Bit(name); ok {
				continue
			}
			if _, err := registry.Register(name); err != nil {
				return nil, fmt.Errorf("register capability %q: %w", name, err)
			}
		}
	}
	registry.Freeze()

	tm := permission.NewTierManager(registry)
	for _, lvl := range levels {
		if err := tm.RegisterTier(lvl.Tier); err != nil {
			return nil, fmt.Errorf("level %d: %w", lvl.Tier.ID, err)
		}
	}
	tm.Freeze()
	return tm, nil
}

// --- Site secrets ---

// SiteSecret returns the secret for scheme, generating and storing one on
// first use.
func (s *SQLiteStore) SiteSecret(ctx context.Context, scheme string) ([]byte, error) {
	var secret []byte
	err := s.db.QueryRowContext(ctx, `SELECT secret FROM site_secrets WHERE scheme = ?`, scheme).Scan(&secret)
	if err == nil {
		return secret, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("select secret: %w", err)
	}

	fresh, err := internal.NewSiteSecret()
	if err != nil {
		return nil, err
	}
	// a concurrent caller may have won the insert; read back whichever stuck
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO site_secrets (scheme, secret, rotated_at) VALUES (?, ?, ?)`,
		scheme, fresh, s.now().UTC().Format(time.RFC3339Nano)); err != nil {
		return nil, fmt.Errorf("insert secret: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT secret FROM site_secrets WHERE scheme = ?`, scheme).Scan(&secret); err != nil {
		return nil, fmt.Errorf("select secret: %w", err)
	}
	s.logger.Info("site secret generated", "scheme", scheme)
	return secret, nil
}

// RotateSecret replaces the secret for scheme. Every cookie or link signed
// with the old secret stops verifying.
func (s *SQLiteStore) RotateSecret(ctx context.Context, scheme string) error {
	fresh, err := internal.NewSiteSecret()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO site_secrets (scheme, secret, rotated_at) VALUES (?, ?, ?)
		 ON CONFLICT(scheme) DO UPDATE SET secret = excluded.secret, rotated_at = excluded.rotated_at`,
		scheme, fresh, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("rotate secret %s: %w", scheme, err)
	}
	s.logger.Info("site secret rotated", "scheme", scheme)
	return nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.DateOnly)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func extraOrEmpty(extra map[string]string) map[string]string {
	if extra == nil {
		return map[string]string{}
	}
	return extra
}
