package user

import (
	"context"
	"database/sql"

	"bookgraph/pkg/models"
)

func Create(ctx context.Context, db *sql.DB, u models.User) error {
	_, err := db.ExecContext(ctx, `INSERT INTO users(id, username, favorite_genre, password_hash) VALUES(?,?,?,?)`,
		u.ID, u.Username, u.FavoriteGenre, u.PasswordHash)
	return err
}

func GetByID(ctx context.Context, db *sql.DB, id string) (models.User, error) {
	return get(ctx, db, `SELECT id, username, favorite_genre, password_hash FROM users WHERE id = ?`, id)
}

func GetByUsername(ctx context.Context, db *sql.DB, username string) (models.User, error) {
	return get(ctx, db, `SELECT id, username, favorite_genre, password_hash FROM users WHERE username = ?`, username)
}

func get(ctx context.Context, db *sql.DB, q, arg string) (models.User, error) {
	var u models.User
	err := db.QueryRowContext(ctx, q, arg).Scan(&u.ID, &u.Username, &u.FavoriteGenre, &u.PasswordHash)
	return u, err
}
