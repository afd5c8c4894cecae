package db

import (
	"database/sql"
	"errors"
	"time"
)

type User struct {
	ID        int64     `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Password  string    `db:"password" json:"-"`
	Role      string    `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

var ErrNotFound = errors.New("not found")

func GetUserByID(id int64) (*User, error) {
	user := &User{}
	err := DB.Get(user, `SELECT id, email, password, role, created_at FROM users WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func GetUserByEmail(email string) (*User, error) {
	user := &User{}
	err := DB.Get(user, `SELECT id, email, password, role, created_at FROM users WHERE email = $1`, email)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CreateUser inserts a local user row and returns it with the assigned id.
// The password is stored as given; hashing is the caller's concern.
func CreateUser(email, passwordHash, role string) (*User, error) {
	user := &User{
		Email:    email,
		Password: passwordHash,
		Role:     role,
	}
	err := DB.QueryRow(`
		INSERT INTO users (email, password, role, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, email, passwordHash, role, time.Now().UTC()).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}
