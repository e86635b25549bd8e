package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/liwanag/screening-server/internal/database"
	"github.com/liwanag/screening-server/internal/model"
)

type UserRepository interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	Create(ctx context.Context, params model.CreateUserParams) (*model.User, error)
	UpdateProfile(ctx context.Context, id int64, params model.UpdateProfileParams) (*model.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
	// LockForUpdate takes a row lock on the user, serializing concurrent
	// open-session resolution for that user within a transaction.
	LockForUpdate(ctx context.Context, id int64) (bool, error)
	WithTx(tx *sqlx.Tx) UserRepository
}

type userRepo struct {
	db database.DBTX
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) WithTx(tx *sqlx.Tx) UserRepository {
	return &userRepo{db: tx}
}

func (r *userRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		SELECT * FROM users WHERE id = $1
	`, id)
	return HandleNotFound(&user, err)
}

func (r *userRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		SELECT * FROM users WHERE username = $1
	`, username)
	return HandleNotFound(&user, err)
}

func (r *userRepo) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		INSERT INTO users (username, password_hash, first_name, surname, middle_initial, hospital_name, hospital_room_no)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *
	`, params.Username, params.PasswordHash, params.FirstName, params.Surname,
		params.MiddleInitial, params.HospitalName, params.HospitalRoomNo)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) UpdateProfile(ctx context.Context, id int64, params model.UpdateProfileParams) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		UPDATE users SET
			first_name = $2,
			surname = $3,
			middle_initial = $4,
			hospital_name = $5,
			hospital_room_no = $6
		WHERE id = $1
		RETURNING *
	`, id, params.FirstName, params.Surname, params.MiddleInitial,
		params.HospitalName, params.HospitalRoomNo)
	return HandleNotFound(&user, err)
}

func (r *userRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2 WHERE id = $1
	`, id, passwordHash)
	return err
}

func (r *userRepo) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET last_login = $2 WHERE id = $1
	`, id, at)
	return err
}

func (r *userRepo) LockForUpdate(ctx context.Context, id int64) (bool, error) {
	var locked int64
	err := r.db.GetContext(ctx, &locked, `
		SELECT id FROM users WHERE id = $1 FOR UPDATE
	`, id)
	found, err := HandleNotFound(&locked, err)
	if err != nil {
		return false, err
	}
	return found != nil, nil
}
