package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"deal_room/internal/domain"
)

// appendAuditLog дописывает в deal_room_audit_log записи журнала, которых там еще нет.
// Вызывается в той же транзакции, что и запись снапшота.
func appendAuditLog(ctx context.Context, tx pgx.Tx, room *domain.DealRoom) error {
	var persisted int64
	err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM deal_room_audit_log WHERE room_id = $1`, room.ID,
	).Scan(&persisted)
	if err != nil {
		return fmt.Errorf("read audit log position: %w", err)
	}

	query := `
		INSERT INTO deal_room_audit_log (room_id, seq, activity_id, activity_type, actor_user_id,
		                                 actor_role, event_time, details, previous_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	batch := &pgx.Batch{}
	for _, a := range room.ActivitiesAfter(persisted) {
		details, err := json.Marshal(a.Details)
		if err != nil {
			return fmt.Errorf("marshal activity details: %w", err)
		}
		batch.Queue(query,
			room.ID, a.Seq, a.ID, a.Type, a.ActorUserID,
			a.ActorRole, a.Timestamp, details, a.PreviousHash, a.Hash,
		)
	}
	if batch.Len() == 0 {
		return nil
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	return nil
}
