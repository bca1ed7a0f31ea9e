package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"starkdex-indexer/internal/domain"
	"starkdex-indexer/internal/storage"
)

// RawEventStore implements storage.RawEventStore using PostgreSQL.
// The typed payload travels as a JSONB column keyed by the event type,
// so the table schema stays stable as payload shapes evolve.
type RawEventStore struct {
	pool *Pool
}

// NewRawEventStore creates a new RawEventStore.
func NewRawEventStore(pool *Pool) *RawEventStore {
	return &RawEventStore{pool: pool}
}

var _ storage.RawEventStore = (*RawEventStore)(nil)

func marshalPayload(e *domain.RawEvent) ([]byte, error) {
	var payload any
	switch e.Type {
	case domain.EventInitialize:
		payload = e.Initialize
	case domain.EventMint, domain.EventIncreaseLiquidity:
		payload = e.Mint
	case domain.EventBurn, domain.EventDecreaseLiquidity:
		payload = e.Burn
	case domain.EventSwap:
		payload = e.Swap
	case domain.EventCollect:
		payload = e.Collect
	case domain.EventTransfer:
		payload = e.Transfer
	default:
		payload = nil
	}
	if payload == nil {
		return []byte("null"), nil
	}
	return json.Marshal(payload)
}

func unmarshalPayload(e *domain.RawEvent, raw []byte) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	switch e.Type {
	case domain.EventInitialize:
		e.Initialize = &domain.InitializePayload{}
		return json.Unmarshal(raw, e.Initialize)
	case domain.EventMint, domain.EventIncreaseLiquidity:
		e.Mint = &domain.LiquidityPayload{}
		return json.Unmarshal(raw, e.Mint)
	case domain.EventBurn, domain.EventDecreaseLiquidity:
		e.Burn = &domain.LiquidityPayload{}
		return json.Unmarshal(raw, e.Burn)
	case domain.EventSwap:
		e.Swap = &domain.SwapPayload{}
		return json.Unmarshal(raw, e.Swap)
	case domain.EventCollect:
		e.Collect = &domain.CollectPayload{}
		return json.Unmarshal(raw, e.Collect)
	case domain.EventTransfer:
		e.Transfer = &domain.TransferPayload{}
		return json.Unmarshal(raw, e.Transfer)
	}
	return nil
}

// Insert adds a staged event.
func (s *RawEventStore) Insert(ctx context.Context, e *domain.RawEvent) error {
	payload, err := marshalPayload(e)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `
		INSERT INTO raw_events (
			id, type, pool_address, position_id,
			block, tx_hash, event_index, timestamp, processed, payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.pool.Exec(ctx, query,
		e.ID, string(e.Type), e.PoolAddress, e.PositionID,
		e.Block, e.TxHash, e.EventIndex, e.Timestamp, e.Processed, payload,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert raw event: %w", err)
	}
	return nil
}

// GetUnprocessed retrieves pending events in chain order.
func (s *RawEventStore) GetUnprocessed(ctx context.Context) ([]*domain.RawEvent, error) {
	query := `
		SELECT id, type, pool_address, position_id,
			block, tx_hash, event_index, timestamp, processed, payload
		FROM raw_events
		WHERE NOT processed
		ORDER BY block ASC, timestamp ASC, event_index ASC
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get unprocessed events: %w", err)
	}
	defer rows.Close()

	var events []*domain.RawEvent
	for rows.Next() {
		var e domain.RawEvent
		var typ string
		var payload []byte
		if err := rows.Scan(
			&e.ID, &typ, &e.PoolAddress, &e.PositionID,
			&e.Block, &e.TxHash, &e.EventIndex, &e.Timestamp, &e.Processed, &payload,
		); err != nil {
			return nil, fmt.Errorf("scan raw event: %w", err)
		}
		e.Type = domain.EventType(typ)
		if err := unmarshalPayload(&e, payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload for event %s: %w", e.ID, err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// MarkProcessed flips Processed on all ids in one statement.
func (s *RawEventStore) MarkProcessed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE raw_events SET processed = TRUE WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("mark events processed: %w", err)
	}
	return nil
}
