package store

import (
	"database/sql"
	"time"
)

// FillRecord is one settled match as journaled to the database. Amounts are
// raw token units; price is in price ticks.
type FillRecord struct {
	ID           string
	MarketID     uint8
	MakerOrderID uint32
	TakerOrderID uint32
	Maker        string
	Taker        string
	TakerIsAsk   bool
	Amount0      uint64
	Amount1      uint64
	Price        uint64
	CreatedAt    time.Time
}

// SaveFill journals one fill.
func (s *Store) SaveFill(f FillRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO fills (id, market_id, maker_order_id, taker_order_id, maker, taker, taker_is_ask, amount0, amount1, price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.MarketID, f.MakerOrderID, f.TakerOrderID, f.Maker, f.Taker, f.TakerIsAsk,
		f.Amount0, f.Amount1, f.Price)
	return err
}

// RecentFills returns the latest fills for a market, newest first.
func (s *Store) RecentFills(marketID uint8, limit int) ([]FillRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, market_id, maker_order_id, taker_order_id, maker, taker, taker_is_ask, amount0, amount1, price, created_at
		FROM fills WHERE market_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?
	`, marketID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFills(rows)
}

// FillsByUser returns fills where the user was maker or taker, newest first.
func (s *Store) FillsByUser(username string, limit int) ([]FillRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, market_id, maker_order_id, taker_order_id, maker, taker, taker_is_ask, amount0, amount1, price, created_at
		FROM fills WHERE maker = ? OR taker = ?
		ORDER BY created_at DESC, id DESC LIMIT ?
	`, username, username, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFills(rows)
}

func scanFills(rows *sql.Rows) ([]FillRecord, error) {
	var out []FillRecord
	for rows.Next() {
		var f FillRecord
		if err := rows.Scan(&f.ID, &f.MarketID, &f.MakerOrderID, &f.TakerOrderID,
			&f.Maker, &f.Taker, &f.TakerIsAsk, &f.Amount0, &f.Amount1, &f.Price, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
