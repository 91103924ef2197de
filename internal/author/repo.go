package author

import (
	"context"
	"database/sql"

	"bookgraph/pkg/models"
)

func Count(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM authors`).Scan(&n)
	return n, err
}

func List(ctx context.Context, db *sql.DB) ([]models.Author, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, born FROM authors ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []models.Author{}
	for rows.Next() {
		var (
			a    models.Author
			born sql.NullInt64
		)
		if err := rows.Scan(&a.ID, &a.Name, &born); err != nil {
			return nil, err
		}
		a.Born = intPtr(born)
		res = append(res, a)
	}
	return res, rows.Err()
}

func GetByID(ctx context.Context, db *sql.DB, id string) (models.Author, error) {
	return get(ctx, db, `SELECT id, name, born FROM authors WHERE id = ?`, id)
}

// GetByName returns the oldest author with exactly this name; names are not
// unique in the schema.
func GetByName(ctx context.Context, db *sql.DB, name string) (models.Author, error) {
	return get(ctx, db, `SELECT id, name, born FROM authors WHERE name = ? ORDER BY rowid LIMIT 1`, name)
}

func Insert(ctx context.Context, db *sql.DB, a models.Author) error {
	_, err := db.ExecContext(ctx, `INSERT INTO authors(id, name, born) VALUES(?,?,?)`, a.ID, a.Name, a.Born)
	return err
}

// Update rewrites name and born. It reports sql.ErrNoRows when id is unknown.
func Update(ctx context.Context, db *sql.DB, a models.Author) error {
	res, err := db.ExecContext(ctx, `UPDATE authors SET name = ?, born = ? WHERE id = ?`, a.Name, a.Born, a.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func get(ctx context.Context, db *sql.DB, q string, arg string) (models.Author, error) {
	var (
		a    models.Author
		born sql.NullInt64
	)
	if err := db.QueryRowContext(ctx, q, arg).Scan(&a.ID, &a.Name, &born); err != nil {
		return models.Author{}, err
	}
	a.Born = intPtr(born)
	return a, nil
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
