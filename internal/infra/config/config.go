// Пакет config отвечает за сбор и предоставление конфигурации шлюза Bot API.
// Он:
//  1. читает переменные окружения из .env (через godotenv),
//  2. нормализует и валидирует входные значения,
//  3. накапливает предупреждения о подозрительных настройках,
//  4. предоставляет потокобезопасный доступ к результатам через R/W мьютекс.
//
// Бизнес-контекст: шлюз обслуживает множество ботов; на каждого бота поднимается
// отдельный Client поверх нативного клиента Telegram. Конфиг среды управляет
// учётными данными API, каталогом рабочих данных, HTTP-адресом, локальным режимом
// (ослабленные лимиты) и файловым логированием.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// EnvConfig описывает параметры, приходящие из окружения (.env). Это «операционные»
// настройки запуска: ключи Telegram API, адрес HTTP-сервера, каталог данных,
// лог-уровень, локальный режим и т. д.
//
// NB: значения уже проходят минимальную валидацию и нормализацию в loadConfig.
// В рантайме по месту использования предполагается, что EnvConfig последователен.
type EnvConfig struct {
	APIID         int
	APIHash       string
	ListenAddress string
	DataDir       string
	LogLevel      string
	LocalMode     bool
	TestDC        bool

	TQueueFile    string
	WebhookDBFile string

	// Файловое логирование
	LogFile           string
	LogFileLevel      string
	LogFileMaxSize    int
	LogFileMaxBackups int
	LogFileMaxAge     int
	LogFileCompress   bool

	// Сколько держать «тёплый» Client после финализации, секунды.
	ClientIdleTimeoutSec int
}

// Config хранит конфигурацию среды.
//
// Потокобезопасность: публичные геттеры берут RLock. Повторная загрузка держит
// эксклюзивный Lock на время обновления полей.
type Config struct {
	Env      EnvConfig
	warnings []string     // предупреждения, накопленные при чтении окружения
	mu       sync.RWMutex // защита конкурентного доступа к конфигурации
}

// Значения по умолчанию для параметров окружения и связанных файлов.
const (
	defaultListenAddress  = "127.0.0.1:8081"
	defaultDataDir        = "data"
	defaultLogLevel       = "info"
	defaultTQueueFile     = "data/tqueue.bbolt"
	defaultWebhookDBFile  = "data/webhooks.bbolt"
	defaultClientIdleSec  = 1800
	defaultLogFileLevel   = "debug"
	defaultLogFileMaxSize = 50
	defaultLogFileBackups = 3
	defaultLogFileMaxAge  = 7
)

var (
	cfgInstance *Config
	cfgDone     bool
	cfgMu       sync.Mutex
)

// Load читает .env по указанному пути (отсутствие файла — не ошибка: окружение
// может быть задано снаружи), затем собирает и валидирует EnvConfig.
// Повторный вызов перезаписывает глобальный инстанс.
func Load(envPath string) error {
	cfgMu.Lock()
	defer cfgMu.Unlock()

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envPath, err)
		}
	}

	cfg := &Config{}
	if err := cfg.loadEnv(); err != nil {
		return err
	}

	cfgInstance = cfg
	cfgDone = true
	return nil
}

// Env возвращает снимок конфигурации окружения. Паникует, если Load не вызывался:
// это ошибка программирования, а не рантайма.
func Env() EnvConfig {
	cfgMu.Lock()
	defer cfgMu.Unlock()

	if !cfgDone {
		panic("config: Load must be called before Env")
	}
	cfgInstance.mu.RLock()
	defer cfgInstance.mu.RUnlock()
	return cfgInstance.Env
}

// Warnings возвращает предупреждения, накопленные при загрузке конфигурации.
func Warnings() []string {
	cfgMu.Lock()
	defer cfgMu.Unlock()

	if !cfgDone {
		return nil
	}
	cfgInstance.mu.RLock()
	defer cfgInstance.mu.RUnlock()
	out := make([]string, len(cfgInstance.warnings))
	copy(out, cfgInstance.warnings)
	return out
}

// loadEnv собирает EnvConfig из переменных окружения с применением дефолтов.
// Обязательны только TELEGRAM_API_ID и TELEGRAM_API_HASH.
func (c *Config) loadEnv() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	env := EnvConfig{
		ListenAddress:        getEnvStr("LISTEN_ADDRESS", defaultListenAddress),
		DataDir:              getEnvStr("DATA_DIR", defaultDataDir),
		LogLevel:             getEnvStr("LOG_LEVEL", defaultLogLevel),
		TQueueFile:           getEnvStr("TQUEUE_FILE", defaultTQueueFile),
		WebhookDBFile:        getEnvStr("WEBHOOK_DB_FILE", defaultWebhookDBFile),
		ClientIdleTimeoutSec: c.getEnvInt("CLIENT_IDLE_TIMEOUT_SEC", defaultClientIdleSec),
		LogFile:              getEnvStr("LOG_FILE", ""),
		LogFileLevel:         getEnvStr("LOG_FILE_LEVEL", defaultLogFileLevel),
		LogFileMaxSize:       c.getEnvInt("LOG_FILE_MAX_SIZE", defaultLogFileMaxSize),
		LogFileMaxBackups:    c.getEnvInt("LOG_FILE_MAX_BACKUPS", defaultLogFileBackups),
		LogFileMaxAge:        c.getEnvInt("LOG_FILE_MAX_AGE", defaultLogFileMaxAge),
		LogFileCompress:      c.getEnvBool("LOG_FILE_COMPRESS", true),
		LocalMode:            c.getEnvBool("LOCAL_MODE", false),
		TestDC:               c.getEnvBool("TEST_DC", false),
	}

	apiIDRaw := strings.TrimSpace(os.Getenv("TELEGRAM_API_ID"))
	if apiIDRaw == "" {
		return errors.New("TELEGRAM_API_ID is required")
	}
	apiID, err := strconv.Atoi(apiIDRaw)
	if err != nil || apiID <= 0 {
		return fmt.Errorf("TELEGRAM_API_ID must be a positive integer, got %q", apiIDRaw)
	}
	env.APIID = apiID

	env.APIHash = strings.TrimSpace(os.Getenv("TELEGRAM_API_HASH"))
	if env.APIHash == "" {
		return errors.New("TELEGRAM_API_HASH is required")
	}

	if env.ClientIdleTimeoutSec <= 0 {
		c.warnings = append(c.warnings, "CLIENT_IDLE_TIMEOUT_SEC <= 0, falling back to default")
		env.ClientIdleTimeoutSec = defaultClientIdleSec
	}
	if env.LocalMode {
		c.warnings = append(c.warnings, "LOCAL_MODE enabled: file limits relaxed, absolute paths exposed in getFile")
	}

	c.Env = env
	return nil
}

// getEnvStr возвращает строковую переменную окружения или дефолт при пустом значении.
func getEnvStr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

// getEnvInt парсит целую переменную окружения; мусор превращается в дефолт с предупреждением.
func (c *Config) getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.warnings = append(c.warnings, fmt.Sprintf("%s=%q is not an integer, using %d", key, raw, def))
		return def
	}
	return v
}

// getEnvBool парсит булеву переменную окружения (true/1/yes); мусор → дефолт с предупреждением.
func (c *Config) getEnvBool(key string, def bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch raw {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		c.warnings = append(c.warnings, fmt.Sprintf("%s=%q is not a boolean, using %v", key, raw, def))
		return def
	}
}
