package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"rankboard/internal/model"
)

func newEvent(typ, boardID, objectID string, now time.Time) model.Event {
	return model.Event{
		ID:     uuid.NewString(),
		Type:   typ,
		Board:  boardID,
		Object: objectID,
		TS:     now.UTC(),
	}
}

func appendEvents(ctx context.Context, q queryer, evs []model.Event) error {
	for _, ev := range evs {
		if _, err := q.ExecContext(ctx, `INSERT INTO events(event_id, type, board_id, object_id, issued_at_unixms) VALUES(?, ?, ?, ?, ?)`,
			ev.ID, ev.Type, ev.Board, ev.Object, ev.TS.UnixMilli()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) publish(evs []model.Event) {
	if s.pub == nil {
		return
	}
	for _, ev := range evs {
		s.pub.Publish(ev)
	}
}

// Events returns the most recent events, oldest first.
func (s *Store) Events(ctx context.Context, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT event_id, type, board_id, object_id, issued_at_unixms
		FROM (SELECT rowid AS seq, * FROM events ORDER BY issued_at_unixms DESC, rowid DESC LIMIT ?)
		ORDER BY issued_at_unixms ASC, seq ASC`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Event{}
	for rows.Next() {
		var ev model.Event
		var tsMs int64
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.Board, &ev.Object, &tsMs); err != nil {
			return nil, err
		}
		ev.TS = time.UnixMilli(tsMs).UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}
