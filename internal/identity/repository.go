package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates the identity does not exist.
	ErrNotFound = errors.New("identity not found")
	// ErrPhoneTaken indicates the phone number is already registered.
	ErrPhoneTaken = errors.New("phone already registered")
)

const uniqueViolationCode = "23505"

// Repository persists identities and their trusted-device associations.
type Repository interface {
	Create(ctx context.Context, id Identity) error
	FindByPhone(ctx context.Context, phone string) (Identity, error)
	FindByID(ctx context.Context, id string) (Identity, error)
	UpdateProfile(ctx context.Context, id Identity) error
	Delete(ctx context.Context, id string) error
	TrustDevice(ctx context.Context, identityID, deviceID string) error
	DeviceTrusted(ctx context.Context, deviceID, phone string) (bool, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new identity record.
func (r *PostgresRepository) Create(ctx context.Context, id Identity) error {
	identityID, err := uuid.Parse(id.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO identities (id, phone, name, password_hash, gender, birth_date, image_key, language, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		identityID, id.Phone, id.Name, id.PasswordHash, id.Gender, id.BirthDate, id.ImageKey, id.Language, id.CreatedAt.UTC())
	if isUniqueViolation(err) {
		return ErrPhoneTaken
	}
	return err
}

// FindByPhone fetches an identity by phone number.
func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) (Identity, error) {
	row := r.db.QueryRow(ctx, `SELECT id, phone, name, password_hash, gender, birth_date, image_key, language, created_at
        FROM identities WHERE phone = $1`, phone)
	return scanIdentity(row)
}

// FindByID fetches an identity by its unique id.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Identity, error) {
	identityID, err := uuid.Parse(id)
	if err != nil {
		return Identity{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, phone, name, password_hash, gender, birth_date, image_key, language, created_at
        FROM identities WHERE id = $1`, identityID)
	return scanIdentity(row)
}

// UpdateProfile stores the mutable profile fields of an existing identity.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, id Identity) error {
	identityID, err := uuid.Parse(id.ID)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE identities SET name = $1, gender = $2, birth_date = $3, image_key = $4, language = $5
        WHERE id = $6`, id.Name, id.Gender, id.BirthDate, id.ImageKey, id.Language, identityID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an identity and its trusted devices. Used as rollback
// compensation after a failed registration.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	identityID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM trusted_devices WHERE identity_id = $1`, identityID); err != nil {
		return err
	}
	cmd, err := r.db.Exec(ctx, `DELETE FROM identities WHERE id = $1`, identityID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TrustDevice records a device identifier as trusted for the identity.
func (r *PostgresRepository) TrustDevice(ctx context.Context, identityID, deviceID string) error {
	id, err := uuid.Parse(identityID)
	if err != nil {
		return ErrNotFound
	}
	_, err = r.db.Exec(ctx, `INSERT INTO trusted_devices (identity_id, device_id, created_at)
        VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`, id, deviceID, time.Now().UTC())
	return err
}

// DeviceTrusted reports whether the device is trusted for the identity owning
// the phone number.
func (r *PostgresRepository) DeviceTrusted(ctx context.Context, deviceID, phone string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (
        SELECT 1 FROM trusted_devices d JOIN identities i ON i.id = d.identity_id
        WHERE d.device_id = $1 AND i.phone = $2)`, deviceID, phone).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func scanIdentity(row pgx.Row) (Identity, error) {
	var (
		id        uuid.UUID
		birthDate *time.Time
		createdAt time.Time
		ident     Identity
	)
	if err := row.Scan(&id, &ident.Phone, &ident.Name, &ident.PasswordHash, &ident.Gender, &birthDate, &ident.ImageKey, &ident.Language, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Identity{}, ErrNotFound
		}
		return Identity{}, err
	}
	ident.ID = id.String()
	ident.BirthDate = birthDate
	ident.CreatedAt = createdAt.UTC()
	return ident, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
