package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateStoryLedger, downCreateStoryLedger)
}

func upCreateStoryLedger(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE TABLE story_ledger (
		id SERIAL PRIMARY KEY,
		username VARCHAR NOT NULL,
		story_id VARCHAR NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
		UNIQUE (username, story_id)
	);
	CREATE INDEX story_ledger_username_idx ON story_ledger (username);
	`)
	return err
}

func downCreateStoryLedger(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE story_ledger;`)
	return err
}
