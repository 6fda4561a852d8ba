package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/nexuscore/agentcore/pkg/models"
)

type sqliteIdentityStore struct {
	db *sql.DB
}

func (s *sqliteIdentityStore) Get(ctx context.Context) (*models.Identity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT creator, display_name, purpose, values_json, beliefs_json, curiosities_json, boundaries_json, capabilities_json, personality, communication_style, version, updated_at
		FROM identity WHERE id = 1`)
	var id models.Identity
	var values, beliefs, curiosities, boundaries, capabilities string
	err := row.Scan(&id.Creator, &id.DisplayName, &id.Purpose, &values, &beliefs, &curiosities, &boundaries, &capabilities, &id.Personality, &id.CommunicationStyle, &id.Version, &id.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(values), &id.Values)
	_ = json.Unmarshal([]byte(beliefs), &id.Beliefs)
	_ = json.Unmarshal([]byte(curiosities), &id.Curiosities)
	_ = json.Unmarshal([]byte(boundaries), &id.Boundaries)
	_ = json.Unmarshal([]byte(capabilities), &id.Capabilities)
	return &id, nil
}

// Init creates the single identity row. creator is immutable thereafter
// (spec §3 invariant); any later call returns ErrAlreadyExists.
func (s *sqliteIdentityStore) Init(ctx context.Context, id *models.Identity) error {
	values, _ := json.Marshal(id.Values)
	beliefs, _ := json.Marshal(id.Beliefs)
	curiosities, _ := json.Marshal(id.Curiosities)
	boundaries, _ := json.Marshal(id.Boundaries)
	capabilities, _ := json.Marshal(id.Capabilities)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO identity(id, creator, display_name, purpose, values_json, beliefs_json, curiosities_json, boundaries_json, capabilities_json, personality, communication_style, version, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		id.Creator, id.DisplayName, id.Purpose, string(values), string(beliefs), string(curiosities), string(boundaries), string(capabilities), id.Personality, id.CommunicationStyle, time.Now())
	if err != nil {
		return ErrAlreadyExists
	}
	return nil
}

// Evolve mutates one identity field and appends the evolution row in the
// same transaction (spec §3 invariant: every mutation produces an Identity
// Evolution row).
func (s *sqliteIdentityStore) Evolve(ctx context.Context, field, newValue, reason string, confidence float64, trigger string) error {
	return execTx(ctx, s.db, func(tx *sql.Tx) error {
		var oldValue string
		col := identityColumn(field)
		if col == "" {
			return errors.New("storage: unknown identity field " + field)
		}
		if err := tx.QueryRowContext(ctx, `SELECT `+col+` FROM identity WHERE id = 1`).Scan(&oldValue); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE identity SET `+col+` = ?, version = version + 1, updated_at = ? WHERE id = 1`, newValue, time.Now()); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO identity_evolution(trigger, field, old_value, new_value, reason, confidence, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`, trigger, field, oldValue, newValue, reason, confidence, time.Now())
		return err
	})
}

// identityColumn maps a field name to its column; only simple scalar
// fields are mutable through Evolve (creator is excluded: it is immutable).
func identityColumn(field string) string {
	switch field {
	case "display_name":
		return "display_name"
	case "purpose":
		return "purpose"
	case "personality":
		return "personality"
	case "communication_style":
		return "communication_style"
	default:
		return ""
	}
}

func (s *sqliteIdentityStore) Evolutions(ctx context.Context, limit int) ([]*models.IdentityEvolution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trigger, field, old_value, new_value, reason, confidence, created_at
		FROM identity_evolution ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.IdentityEvolution
	for rows.Next() {
		var e models.IdentityEvolution
		if err := rows.Scan(&e.Trigger, &e.Field, &e.Old, &e.New, &e.Reason, &e.Confidence, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
