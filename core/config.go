package core

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// storage backends
const (
	StorageDemo     = "demo"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

type (
	Config struct {
		Debug        bool
		TestMode     bool
		Env          string
		Build        string
		AppName      string
		SecretKey    string
		RollbarToken string

		Server   ServerConfig
		Database DatabaseConfig
		Storage  StorageConfig
		Rules    RulesConfig
	}

	ServerConfig struct {
		Host               string
		Address            string
		DebugAddress       string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		User          string
		Password      string
		Name          string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	StorageConfig struct {
		Backend       string // demo | postgres | sqlite
		SQLitePath    string
		RetryAttempts int
		RetryDelay    time.Duration
	}

	RulesConfig struct {
		// ExclusiveGroupMembership limits a student to one active academic group per academic year.
		ExclusiveGroupMembership bool
	}
)

func (c DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func newViper() *viper.Viper {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "MWPanel")
	v.SetDefault("secretKey", "k2v$8n-q!x7t(wz^c1=0fj#pdm@3yr+b5s6e&gh4a9u)")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugAddress", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "mwpanel")
	v.SetDefault("database.password", "mwpanel")
	v.SetDefault("database.name", "mwpanel")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("storage.backend", StorageDemo)
	v.SetDefault("storage.sqlitePath", filepath.Join("data", "mwpanel.db"))
	v.SetDefault("storage.retryAttempts", 3)
	v.SetDefault("storage.retryDelay", 100*time.Millisecond)

	v.SetDefault("rules.exclusiveGroupMembership", false)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetDefault("env", env)
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()
	return v
}

// NewConfig loads the application config from defaults, the optional dotenv file and the environment.
func NewConfig() *Config {
	v := newViper()
	return &Config{
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		Env:          v.GetString("env"),
		Build:        v.GetString("build"),
		AppName:      v.GetString("appName"),
		SecretKey:    v.GetString("secretKey"),
		RollbarToken: v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:               v.GetString("server.host"),
			Address:            v.GetString("server.address"),
			DebugAddress:       v.GetString("server.debugAddress"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			Name:          v.GetString("database.name"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Storage: StorageConfig{
			Backend:       strings.ToLower(v.GetString("storage.backend")),
			SQLitePath:    v.GetString("storage.sqlitePath"),
			RetryAttempts: v.GetInt("storage.retryAttempts"),
			RetryDelay:    v.GetDuration("storage.retryDelay"),
		},
		Rules: RulesConfig{
			ExclusiveGroupMembership: v.GetBool("rules.exclusiveGroupMembership"),
		},
	}
}
