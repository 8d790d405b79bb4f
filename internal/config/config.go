package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"

	"settlement-reconciler/internal/reconciler"
)

type Config struct {
	ServerAddress string `env:"SERVER_ADDRESS,required"`
	Environment   string `env:"ENVIRONMENT,required"`
	LogLevel      string `env:"LOG_LEVEL"`
	MaxUploadMB   int64  `env:"MAX_UPLOAD_MB"`
	Database      DatabaseConfig
	Migration     MigrationConfig
	Reconcile     ReconcileConfig
}

type DatabaseConfig struct {
	Enabled  bool   `env:"DB_ENABLED"`
	Host     string `env:"DB_HOST,required"`
	Port     int    `env:"DB_PORT,required"`
	User     string `env:"DB_USER,required"`
	Password string `env:"DB_PASSWORD,required"`
	Name     string `env:"DB_NAME,required"`
	Params   string `env:"DB_PARAMS,required"`
}

type MigrationConfig struct {
	Dir string `env:"MIGRATION_DIR"`
}

// ReconcileConfig holds the defaults applied when a run does not override them.
type ReconcileConfig struct {
	OrderType         string `env:"RECONCILE_ORDER_TYPE"`
	ExpenseCategories string `env:"RECONCILE_EXPENSE_CATEGORIES"`
	CompanyName       string `env:"COMPANY_NAME"`
	SupplierName      string `env:"SUPPLIER_NAME"`
	CostCenter        string `env:"DEFAULT_COST_CENTER"`
	ContraGSTIN       string `env:"CONTRA_GSTIN"`
	Series            string `env:"JOURNAL_SERIES"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_ADDRESS", ":8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MAX_UPLOAD_MB", 32)
	v.SetDefault("DB_ENABLED", false)
	v.SetDefault("DB_PORT", 3306)
	v.SetDefault("DB_PARAMS", "parseTime=true")
	v.SetDefault("MIGRATION_DIR", "migrations")
	v.SetDefault("RECONCILE_ORDER_TYPE", "COD_")
	v.SetDefault("RECONCILE_EXPENSE_CATEGORIES", "")
	v.SetDefault("COMPANY_NAME", "Thakker Mercantile Private Limited")
	v.SetDefault("SUPPLIER_NAME", "Amazon Seller Services Private Limited")
	v.SetDefault("DEFAULT_COST_CENTER", "6 - Retail - TMPL")
	v.SetDefault("CONTRA_GSTIN", "27AACCT1557E1ZH")
	v.SetDefault("JOURNAL_SERIES", "ACC-JV-.YYYY.-")
}

// LoadConfig reads .env from the working directory and lets the environment
// override it. A missing .env file is not an error.
func LoadConfig() (*Config, error) {
	return LoadConfigFile(".env")
}

func LoadConfigFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := &Config{
		ServerAddress: v.GetString("SERVER_ADDRESS"),
		Environment:   v.GetString("ENVIRONMENT"),
		LogLevel:      v.GetString("LOG_LEVEL"),
		MaxUploadMB:   v.GetInt64("MAX_UPLOAD_MB"),
		Database: DatabaseConfig{
			Enabled:  v.GetBool("DB_ENABLED"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
			Params:   v.GetString("DB_PARAMS"),
		},
		Migration: MigrationConfig{
			Dir: v.GetString("MIGRATION_DIR"),
		},
		Reconcile: ReconcileConfig{
			OrderType:         v.GetString("RECONCILE_ORDER_TYPE"),
			ExpenseCategories: v.GetString("RECONCILE_EXPENSE_CATEGORIES"),
			CompanyName:       v.GetString("COMPANY_NAME"),
			SupplierName:      v.GetString("SUPPLIER_NAME"),
			CostCenter:        v.GetString("DEFAULT_COST_CENTER"),
			ContraGSTIN:       v.GetString("CONTRA_GSTIN"),
			Series:            v.GetString("JOURNAL_SERIES"),
		},
	}

	if config.Database.Enabled && config.Database.Host == "" {
		return nil, errors.New("DB_HOST is required when DB_ENABLED is set")
	}

	return config, nil
}

// IsProduction reports whether the service runs outside local development.
func (c *Config) IsProduction() bool {
	return !strings.EqualFold(c.Environment, "development")
}

// GetDSN returns the MySQL DSN string
func (c *Config) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.Params,
	)
}

// GetMigrationDBURL returns the database URL for migrations
func (c *Config) GetMigrationDBURL() string {
	return "mysql://" + c.GetDSN()
}

// ReconcileDefaults returns the engine options configured for this
// deployment. Requests may still override the order type and expense list.
func (c *Config) ReconcileDefaults() reconciler.Options {
	return reconciler.Options{
		OrderType:         c.Reconcile.OrderType,
		ExpenseCategories: reconciler.ParseExpenseCategories(c.Reconcile.ExpenseCategories),
		Company:           c.Reconcile.CompanyName,
		Supplier:          c.Reconcile.SupplierName,
		CostCenter:        c.Reconcile.CostCenter,
		ContraGSTIN:       c.Reconcile.ContraGSTIN,
		Series:            c.Reconcile.Series,
	}
}
