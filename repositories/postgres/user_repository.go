package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/eloboost/models"
	"github.com/upb/eloboost/repositories"
	"go.uber.org/zap"
)

const userColumns = `id, username, email, avatar, is_owner, is_booster, auth_provider,
		discord_id, discord_name, google_id, google_name, created_at, last_login, ip_address, ip_info`

// providerColumns maps a provider to its id and display name columns
var providerColumns = map[models.AuthProvider][2]string{
	models.ProviderDiscord: {"discord_id", "discord_name"},
	models.ProviderGoogle:  {"google_id", "google_name"},
}

// UserRepository implements the repositories.UserRepository interface
type UserRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB, logger *zap.Logger) repositories.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// upsertQuery builds the insert-or-update statement for one provider.
// xmax is zero only for a freshly inserted row.
func upsertQuery(idCol, nameCol string) string {
	return fmt.Sprintf(`
		INSERT INTO users (id, username, email, avatar, auth_provider, %[1]s, %[2]s, created_at, last_login, ip_address, ip_info)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, $9, $10)
		ON CONFLICT (%[1]s) WHERE %[1]s IS NOT NULL DO UPDATE SET
			%[2]s = EXCLUDED.%[2]s,
			last_login = EXCLUDED.last_login,
			ip_address = EXCLUDED.ip_address,
			ip_info = EXCLUDED.ip_info,
			auth_provider = EXCLUDED.auth_provider,
			avatar = CASE WHEN EXCLUDED.avatar <> '' THEN EXCLUDED.avatar ELSE users.avatar END
		RETURNING %[3]s, (xmax = 0) AS inserted
	`, idCol, nameCol, userColumns)
}

// UpsertLogin creates or updates the user for a provider login in one statement
func (r *UserRepository) UpsertLogin(ctx context.Context, rec models.LoginRecord) (*models.User, bool, error) {
	cols, ok := providerColumns[rec.Provider]
	if !ok {
		return nil, false, fmt.Errorf("unsupported auth provider: %q", rec.Provider)
	}

	ipInfo, err := models.MarshalIPInfo(rec.IPInfo)
	if err != nil {
		return nil, false, err
	}

	row := r.db.QueryRowContext(ctx, upsertQuery(cols[0], cols[1]),
		uuid.NewString(),
		rec.DisplayName,
		rec.Email,
		rec.Avatar,
		string(rec.Provider),
		rec.ProviderID,
		rec.DisplayName,
		rec.At.UTC(),
		nullString(rec.IPAddress),
		ipInfo,
	)

	var created bool
	user, err := scanUser(row, &created)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert user: %w", err)
	}

	r.logger.Debug("user login stored",
		zap.String("id", user.ID),
		zap.String("provider", string(rec.Provider)),
		zap.Bool("created", created))
	return user, created, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repositories.ErrNotFound
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// List retrieves users ordered by most recent login
func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY last_login DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// Ping checks the database connection
func (r *UserRepository) Ping(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUser reads userColumns, plus the inserted flag when extra is given
func scanUser(row rowScanner, extra ...interface{}) (*models.User, error) {
	var (
		user                   models.User
		provider               string
		discordID, discordName sql.NullString
		googleID, googleName   sql.NullString
		ipAddress              sql.NullString
		ipInfo                 []byte
	)

	dest := []interface{}{
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Avatar,
		&user.IsOwner,
		&user.IsBooster,
		&provider,
		&discordID,
		&discordName,
		&googleID,
		&googleName,
		&user.CreatedAt,
		&user.LastLogin,
		&ipAddress,
		&ipInfo,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	info, err := models.UnmarshalIPInfo(ipInfo)
	if err != nil {
		return nil, err
	}

	user.AuthProvider = models.AuthProvider(provider)
	user.DiscordID = discordID.String
	user.DiscordName = discordName.String
	user.GoogleID = googleID.String
	user.GoogleName = googleName.String
	user.IPAddress = ipAddress.String
	user.IPInfo = info
	return &user, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
