// internal/database/results.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/forca/internal/models"
)

// InsertRoomResults archives a batch of finished-room reports in a single
// transaction. Re-archiving the same room session is ignored.
func InsertRoomResults(ctx context.Context, pool *pgxpool.Pool, reports []*models.RoomReport) error {
	if len(reports) == 0 {
		return nil
	}
	return pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, r := range reports {
			if err := insertRoomResultTx(ctx, tx, r); err != nil {
				return fmt.Errorf("insertRoomResultTx %s: %w", r.RoomCode, err)
			}
		}
		return nil
	})
}

func insertRoomResultTx(ctx context.Context, tx pgx.Tx, r *models.RoomReport) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	started := time.UnixMilli(r.StartedAt)
	tag, err := tx.Exec(ctx, `
		INSERT INTO room_results (room_code, started_at, finished_at, module_id, module_name, term_count, report)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (room_code, started_at) DO NOTHING`,
		r.RoomCode, started, time.UnixMilli(r.FinishedAt), r.ModuleID, r.ModuleName, r.TermCount, payload,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, s := range r.Standings {
		batch.Queue(`
			INSERT INTO room_result_players (room_code, started_at, player_id, player_name, rank, score, won, lost)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			r.RoomCode, started, s.PlayerID, s.Name, s.Rank, s.Score, s.Won, s.Lost,
		)
	}
	return tx.SendBatch(ctx, batch).Close()
}
