package config

import "time"

type Config struct {
	TelegramConfig
	DBConfig
	GoogleSheetConfig
	IntakeConfig
}

type GoogleSheetConfig struct {
	SheetID           string `envconfig:"SHEET_ID" required:"true" masked:"true"`
	ClientListID      string `envconfig:"CLIENT_LIST_ID" required:"true" masked:"true"`
	CredentialsBase64 string `envconfig:"CREDENTIALS_BASE64" required:"true" masked:"true"`
	PauseMs           int    `envconfig:"SHEET_PAUSE_MS" required:"false"`
	// Порядок колонок через запятую, например "N,Reference,Name"
	Columns string `envconfig:"SHEET_COLUMNS" required:"false"`
}

type TelegramConfig struct {
	BotToken   string        `envconfig:"BOT_TOKEN" required:"true" masked:"true"`
	Admins     string        `envconfig:"ADMINS" required:"false" masked:"true"`
	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"24h"`
}

type DBConfig struct {
	// postgres или sqlite
	Driver string `envconfig:"DBDRIVER" default:"postgres"`
	User   string `envconfig:"DBUSER" masked:"true"`
	Pass   string `envconfig:"DBPASS" masked:"true"`
	Host   string `envconfig:"DBHOST" masked:"true"`
	DBName string `envconfig:"DBNAME" masked:"true"`

	Port    string `envconfig:"DBPORT" masked:"true"`
	SSLMode string `envconfig:"DBSSLMODE" default:"disable"`
	// Файл базы для sqlite
	Path string `envconfig:"DBPATH" default:"intake.db"`
}

type IntakeConfig struct {
	Branches     []string `envconfig:"BRANCHES" default:"riyadh,jeddah,dammam"`
	SyncSchedule string   `envconfig:"SYNC_SCHEDULE" default:"@every 10m"`
}
