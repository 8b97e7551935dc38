package postgres

import "time"

type seasonStatsTableModel struct {
	ID        int64     `db:"id"`
	Season    string    `db:"season"`
	Player    string    `db:"player"`
	Pos       string    `db:"pos"`
	Squad     string    `db:"squad"`
	Comp      string    `db:"comp"`
	Stats     []byte    `db:"stats"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
