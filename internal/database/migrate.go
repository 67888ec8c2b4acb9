package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order; every statement is idempotent.  users and
// venues are owned by the account and venue services and only read here,
// but the tables are created so a fresh database is usable on its own.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id          CHAR(36)     NOT NULL PRIMARY KEY,
		name        VARCHAR(100) NOT NULL,
		email       VARCHAR(255) NOT NULL UNIQUE,
		avatar      VARCHAR(500) NULL,
		phone       VARCHAR(32)  NULL,
		role        ENUM('user','admin') NOT NULL DEFAULT 'user',
		push_token  VARCHAR(255) NULL,
		created_at  DATETIME(6)  NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS venues (
		id          CHAR(36)     NOT NULL PRIMARY KEY,
		name        VARCHAR(200) NOT NULL,
		address     VARCHAR(500) NOT NULL,
		latitude    DOUBLE       NOT NULL,
		longitude   DOUBLE       NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS games (
		id              CHAR(36)      NOT NULL PRIMARY KEY,
		title           VARCHAR(100)  NOT NULL,
		sport           VARCHAR(20)   NOT NULL,
		host_id         CHAR(36)      NOT NULL,
		venue_id        CHAR(36)      NULL,
		custom_location VARCHAR(200)  NULL,
		latitude        DOUBLE        NOT NULL,
		longitude       DOUBLE        NOT NULL,
		date_time       DATETIME(6)   NOT NULL,
		duration        INT           NOT NULL,
		max_players     INT           NOT NULL,
		min_players     INT           NOT NULL DEFAULT 2,
		skill_level     VARCHAR(20)   NOT NULL DEFAULT 'any',
		description     VARCHAR(1000) NULL,
		price           INT           NULL,
		status          ENUM('upcoming','in_progress','completed','cancelled') NOT NULL DEFAULT 'upcoming',
		rsvp_seq        BIGINT        NOT NULL DEFAULT 0,
		created_at      DATETIME(6)   NOT NULL,
		updated_at      DATETIME(6)   NOT NULL,
		KEY idx_games_host (host_id, date_time),
		KEY idx_games_status_time (status, date_time)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS rsvps (
		id          CHAR(36)    NOT NULL PRIMARY KEY,
		game_id     CHAR(36)    NOT NULL,
		user_id     CHAR(36)    NOT NULL,
		status      ENUM('confirmed','waitlisted','cancelled') NOT NULL,
		position    BIGINT      NOT NULL,
		created_at  DATETIME(6) NOT NULL,
		updated_at  DATETIME(6) NOT NULL,
		UNIQUE KEY uq_rsvps_game_user (game_id, user_id),
		KEY idx_rsvps_game_status_pos (game_id, status, position),
		KEY idx_rsvps_user_status (user_id, status),
		CONSTRAINT fk_rsvps_game FOREIGN KEY (game_id) REFERENCES games (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id          CHAR(36)     NOT NULL PRIMARY KEY,
		user_id     CHAR(36)     NOT NULL,
		title       VARCHAR(200) NOT NULL,
		body        VARCHAR(1000) NOT NULL,
		type        ENUM('game_reminder','game_update','rsvp_update','general') NOT NULL DEFAULT 'general',
		data        JSON         NULL,
		is_read     BOOLEAN      NOT NULL DEFAULT FALSE,
		created_at  DATETIME(6)  NOT NULL,
		KEY idx_notifications_user (user_id, is_read, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
