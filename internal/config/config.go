package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/joho/godotenv"

	"orderrpa/internal/orders"
)

type Config struct {
	InputCSV  string
	OutputDir string

	LeadTimeDays      int
	UrgencyWindowDays int
	ReferenceDate     string

	ScheduleEnabled  bool
	ScheduleInterval time.Duration
	HTTPAddr         string

	LogLevel       string
	LogDevelopment bool

	NotifySinks     []string
	AlertRecipient  string
	ReportRecipient string
	SMTP            SMTPConfig

	KafkaBootstrap     string
	TopicNotifications string
	TopicRuns          string
	TopicManifest      string
	JournalSink        string // file|kafka|both
	ManifestSink       string // file|kafka|both

	HistoryBackend string // memory|pebble
	HistoryDir     string
	JournalDir     string

	DatabaseURL string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Load reads .env (if present) and the process environment. A value that
// does not parse is an error; freight keys fail with *orders.ConfigError.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var env envReader
	cfg := Config{
		InputCSV:  getenv("ORDERS_CSV", "data/orders.csv"),
		OutputDir: getenv("OUTPUT_DIR", "output"),

		LeadTimeDays:      env.freightInt("LEAD_TIME_DAYS", "lead_time_days", orders.DefaultLeadTimeDays),
		UrgencyWindowDays: env.freightInt("URGENCY_WINDOW_DAYS", "urgency_window_days", orders.DefaultUrgencyWindowDays),
		ReferenceDate:     os.Getenv("REFERENCE_DATE"),

		ScheduleEnabled:  env.boolean("SCHEDULE_ENABLED", false),
		ScheduleInterval: time.Duration(env.integer("SCHEDULE_INTERVAL_MINUTES", 60)) * time.Minute,
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),

		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogDevelopment: env.boolean("LOG_DEVELOPMENT", false),

		NotifySinks:     SplitList(getenv("NOTIFY_SINKS", "log")),
		AlertRecipient:  getenv("ALERT_RECIPIENT", "management@example.com"),
		ReportRecipient: getenv("REPORT_RECIPIENT", "board@example.com"),
		SMTP: SMTPConfig{
			Host:     getenv("SMTP_HOST", "smtp.gmail.com"),
			Port:     env.integer("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},

		KafkaBootstrap:     os.Getenv("KAFKA_BOOTSTRAP"),
		TopicNotifications: getenv("TOPIC_NOTIFICATIONS", "orderrpa.notifications"),
		TopicRuns:          getenv("TOPIC_RUNS", "orderrpa.runs"),
		TopicManifest:      getenv("TOPIC_MANIFEST", "orderrpa.manifest"),
		JournalSink:        getenv("JOURNAL_SINK", "file"),
		ManifestSink:       getenv("MANIFEST_SINK", "file"),

		HistoryBackend: getenv("HISTORY_BACKEND", "memory"),
		HistoryDir:     getenv("HISTORY_DIR", "data/history"),
		JournalDir:     getenv("JOURNAL_DIR", "data/journal"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
	}
	if err := errors.Join(env.errs...); err != nil {
		return Config{}, err
	}
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Username
	}
	return cfg, nil
}

// Params converts the freight settings into core parameters. An empty
// REFERENCE_DATE resolves to today.
func (c Config) Params(today civil.Date) (orders.Params, error) {
	p := orders.Params{
		LeadTimeDays:      c.LeadTimeDays,
		UrgencyWindowDays: c.UrgencyWindowDays,
		ReferenceDate:     today,
	}
	if strings.TrimSpace(c.ReferenceDate) != "" {
		d, err := civil.ParseDate(strings.TrimSpace(c.ReferenceDate))
		if err != nil {
			return orders.Params{}, &orders.ConfigError{Field: "reference_date", Value: c.ReferenceDate, Reason: "must be YYYY-MM-DD"}
		}
		p.ReferenceDate = d
	}
	if err := p.Validate(); err != nil {
		return orders.Params{}, err
	}
	return p, nil
}

// SplitList splits a comma separated value, dropping blanks.
func SplitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Brokers splits a comma separated bootstrap list, dropping blanks.
func Brokers(bootstrap string) []string {
	var brokers []string
	for _, a := range strings.Split(bootstrap, ",") {
		if a = strings.TrimSpace(a); a != "" {
			brokers = append(brokers, a)
		}
	}
	return brokers
}

// Has reports whether sink mode includes target ("both" includes file and kafka).
func Has(mode, target string) bool {
	mode = strings.ToLower(strings.TrimSpace(mode))
	return mode == target || (mode == "both" && (target == "file" || target == "kafka"))
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envReader parses typed variables and collects every malformed one.
type envReader struct {
	errs []error
}

func (e *envReader) integer(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s=%q: not an integer", key, v))
		return def
	}
	return n
}

func (e *envReader) freightInt(key, field string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, &orders.ConfigError{Field: field, Value: v, Reason: "not an integer"})
		return def
	}
	return n
}

func (e *envReader) boolean(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s=%q: not a boolean", key, v))
		return def
	}
	return b
}
