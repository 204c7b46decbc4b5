package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"betting-service/internal/db/postgres"
)

// runMigrations выполняет все SQL-миграции.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if err := postgres.EnsureMigrationTable(ctx, pool); err != nil {
		return err
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001Users},
		{2, migration002Wallets},
		{3, migration003Transactions},
		{4, migration004Subscriptions},
		{5, migration005Games},
		{6, migration006Security},
		{7, migration007Seed},
	}

	for _, m := range migrations {
		if err := postgres.ApplyMigration(ctx, pool, m.version, m.sql); err != nil {
			return fmt.Errorf("миграция %d: %w", m.version, err)
		}
		log.Infof("Миграция %d применена", m.version)
	}

	return nil
}

// SQL-миграции встроены в код для упрощения деплоя.

var migration001Users = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    username VARCHAR(64) UNIQUE NOT NULL,
    password_hash TEXT NOT NULL,
    role VARCHAR(32) NOT NULL DEFAULT 'user',
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
`

var migration002Wallets = `
CREATE TABLE IF NOT EXISTS wallets (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT UNIQUE NOT NULL REFERENCES users(id),
    balance BIGINT NOT NULL DEFAULT 0,
    held BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_wallets_user_id ON wallets(user_id);
`

var migration003Transactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id),
    amount BIGINT NOT NULL,
    transaction_type VARCHAR(50) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'completed',
    description TEXT,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions(user_id);
CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_transactions_user_type_status
    ON transactions(user_id, transaction_type, status);
`

var migration004Subscriptions = `
CREATE TABLE IF NOT EXISTS subscriptions (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    price BIGINT NOT NULL,
    daily_reward BIGINT NOT NULL,
    total_reward BIGINT NOT NULL,
    duration_days INTEGER NOT NULL,
    level INTEGER NOT NULL,
    withdrawal_wait_days INTEGER NOT NULL DEFAULT 0,
    is_active BOOLEAN DEFAULT TRUE,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS user_subscriptions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id),
    subscription_id BIGINT NOT NULL REFERENCES subscriptions(id),
    start_date TIMESTAMP NOT NULL,
    end_date TIMESTAMP NOT NULL,
    last_reward_date TIMESTAMP,
    next_withdrawal_date TIMESTAMP NOT NULL,
    is_active BOOLEAN DEFAULT TRUE,
    total_earned BIGINT NOT NULL DEFAULT 0,
    total_withdrawn BIGINT NOT NULL DEFAULT 0,
    accumulated_winnings BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_user_subscriptions_user_id ON user_subscriptions(user_id);
CREATE INDEX IF NOT EXISTS idx_user_subscriptions_due
    ON user_subscriptions(is_active, last_reward_date);
`

var migration005Games = `
CREATE TABLE IF NOT EXISTS games (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    min_bet BIGINT NOT NULL DEFAULT 1,
    is_active BOOLEAN DEFAULT TRUE,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS game_rounds (
    id BIGSERIAL PRIMARY KEY,
    game_id BIGINT NOT NULL REFERENCES games(id),
    start_time TIMESTAMP NOT NULL DEFAULT NOW(),
    end_time TIMESTAMP,
    winner VARCHAR(64),
    is_completed BOOLEAN NOT NULL DEFAULT FALSE
);
-- На игру может быть открыт только один раунд
CREATE UNIQUE INDEX IF NOT EXISTS idx_game_rounds_open
    ON game_rounds(game_id) WHERE NOT is_completed;
CREATE TABLE IF NOT EXISTS game_bets (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id),
    game_round_id BIGINT NOT NULL REFERENCES game_rounds(id),
    bet_amount BIGINT NOT NULL,
    bet_choice VARCHAR(64) NOT NULL,
    is_win BOOLEAN,
    win_amount BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_game_bets_round ON game_bets(game_round_id);
CREATE INDEX IF NOT EXISTS idx_game_bets_user_created
    ON game_bets(user_id, created_at DESC);
`

var migration006Security = `
CREATE TABLE IF NOT EXISTS login_attempts (
    id BIGSERIAL PRIMARY KEY,
    username VARCHAR(64) NOT NULL,
    ip VARCHAR(64),
    success BOOLEAN NOT NULL,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_login_attempts_username
    ON login_attempts(username, created_at DESC);
CREATE TABLE IF NOT EXISTS user_sessions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id),
    ip VARCHAR(64),
    user_agent TEXT,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_user_sessions_user
    ON user_sessions(user_id, created_at DESC);
-- user_id без FK: алерты пишутся и по анонимным попыткам входа (user_id = 0)
CREATE TABLE IF NOT EXISTS security_alerts (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL DEFAULT 0,
    alert_type VARCHAR(64) NOT NULL,
    severity VARCHAR(16) NOT NULL,
    description TEXT,
    metadata JSONB,
    resolved BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_security_alerts_user_type
    ON security_alerts(user_id, alert_type, created_at DESC);
`

var migration007Seed = `
INSERT INTO games (name, min_bet)
SELECT 'Красное или зелёное', 10
WHERE NOT EXISTS (SELECT 1 FROM games);
INSERT INTO subscriptions (name, price, daily_reward, total_reward, duration_days, level, withdrawal_wait_days)
SELECT * FROM (VALUES
    ('Стартовый', 500::BIGINT, 25::BIGINT, 1000::BIGINT, 30, 1, 7),
    ('Серебряный', 2000::BIGINT, 110::BIGINT, 4500::BIGINT, 30, 2, 7),
    ('Золотой', 5000::BIGINT, 300::BIGINT, 12000::BIGINT, 30, 3, 5),
    ('Платиновый', 12000::BIGINT, 800::BIGINT, 30000::BIGINT, 30, 4, 3),
    ('Бриллиантовый', 30000::BIGINT, 2200::BIGINT, 80000::BIGINT, 30, 5, 1)
) AS seed(name, price, daily_reward, total_reward, duration_days, level, withdrawal_wait_days)
WHERE NOT EXISTS (SELECT 1 FROM subscriptions);
`
