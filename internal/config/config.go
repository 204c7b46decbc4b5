// Package config загружает конфигурацию сервиса из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
// Перед чтением окружения подхватывается .env файл (godotenv), чтобы локальный
// запуск не требовал экспорта десятка переменных вручную.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- HTTP ---
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`
	// Секрет для подписи JWT. Без него сервис не стартует.
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
	// Время жизни JWT-токена
	JWTTTL time.Duration `envconfig:"JWT_TTL" default:"24h"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"betting"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"betting_service"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Redis ---
	// Redis держит счётчики rate-limit'а (атомарный INCR).
	// Если REDIS_ADDR пустой — счётчики живут в памяти процесса.
	RedisAddr     string `envconfig:"REDIS_ADDR" default:""`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`

	// --- Rounds (игровые раунды) ---
	// Множитель выплаты за угаданный исход
	RoundPayoutMultiplier int64 `envconfig:"ROUND_PAYOUT_MULTIPLIER" default:"2"`

	// --- Rewards (подписки и ежедневные начисления) ---
	// Интервал между ежедневными начислениями
	RewardInterval time.Duration `envconfig:"REWARD_INTERVAL" default:"24h"`
	// Порог суммарных выигрышей, после которого разрешены только планы
	// уровня MandatoryUpgradeLevel и выше
	MandatoryUpgradeWinnings int64 `envconfig:"MANDATORY_UPGRADE_WINNINGS" default:"30000"`
	MandatoryUpgradeLevel    int   `envconfig:"MANDATORY_UPGRADE_LEVEL" default:"3"`

	// --- Rate Limiting ---
	// Дефолтный лимит для всех эндпоинтов; логин/регистрация/кошелёк строже.
	RateLimitMax       int           `envconfig:"RATE_LIMIT_MAX" default:"60"`
	RateLimitWindow    time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitAuthMax   int           `envconfig:"RATE_LIMIT_AUTH_MAX" default:"5"`
	RateLimitAuthWin   time.Duration `envconfig:"RATE_LIMIT_AUTH_WINDOW" default:"15m"`
	RateLimitWalletMax int           `envconfig:"RATE_LIMIT_WALLET_MAX" default:"20"`
	RateLimitWalletWin time.Duration `envconfig:"RATE_LIMIT_WALLET_WINDOW" default:"1m"`

	// --- Abuse Detection ---
	// Окно и порог неудачных попыток входа
	LoginFailureWindow    time.Duration `envconfig:"LOGIN_FAILURE_WINDOW" default:"15m"`
	LoginFailureThreshold int           `envconfig:"LOGIN_FAILURE_THRESHOLD" default:"5"`
	// Фиксированные пороги «крупной транзакции» по типам
	LargeWithdrawal int64 `envconfig:"LARGE_WITHDRAWAL" default:"1000"`
	LargeDeposit    int64 `envconfig:"LARGE_DEPOSIT" default:"3000"`
	LargeBet        int64 `envconfig:"LARGE_BET" default:"500"`
	LargeDefault    int64 `envconfig:"LARGE_DEFAULT" default:"2000"`
	// Во сколько раз сумма должна превышать исторический средний,
	// чтобы считаться аномальной
	PatternMultiplier float64 `envconfig:"PATTERN_MULTIPLIER" default:"5"`
	// Детектор автоматических ставок: число последних ставок в выборке,
	// минимум для анализа и пороги по интервалам между ставками
	BetSampleSize    int           `envconfig:"BET_SAMPLE_SIZE" default:"10"`
	BetSampleMin     int           `envconfig:"BET_SAMPLE_MIN" default:"5"`
	BetStddevCeiling time.Duration `envconfig:"BET_STDDEV_CEILING" default:"500ms"`
	BetMeanCeiling   time.Duration `envconfig:"BET_MEAN_CEILING" default:"5s"`

	// --- Notification Hub ---
	// Размер буфера событий на одного подключённого клиента.
	// Медленный клиент теряет события, а не тормозит отправителя.
	HubClientBuffer int `envconfig:"HUB_CLIENT_BUFFER" default:"32"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("некорректный HTTP_PORT: %d", c.HTTPPort)
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.RoundPayoutMultiplier <= 0 {
		return fmt.Errorf("ROUND_PAYOUT_MULTIPLIER должен быть > 0")
	}
	if c.RewardInterval <= 0 {
		return fmt.Errorf("REWARD_INTERVAL должен быть > 0")
	}
	if c.RateLimitMax <= 0 || c.RateLimitAuthMax <= 0 || c.RateLimitWalletMax <= 0 {
		return fmt.Errorf("лимиты запросов должны быть > 0")
	}
	if c.BetSampleMin > c.BetSampleSize {
		return fmt.Errorf("BET_SAMPLE_MIN не может превышать BET_SAMPLE_SIZE")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	// .env подхватываем молча: в контейнере его обычно нет
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
