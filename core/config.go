package core

import (
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		DisableReqLogs            bool
	}

	StorageConfig struct {
		Engine        string // memory | badger | redis | postgres
		BadgerDir     string
		RedisAddr     string
		RedisPassword string
		RedisDB       int
		KeyPrefix     string
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	GraphConfig struct {
		Engine        string // document | neo4j
		Neo4jURI      string
		Neo4jUser     string
		Neo4jPassword string
		Neo4jDatabase string
	}

	ContentConfig struct {
		Engine  string // gemini | offline
		APIKey  string
		BaseURL string
		Model   string
		Timeout time.Duration
	}

	Config struct {
		AppName          string
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		SecretKey        string
		RollbarToken     string
		DefaultFromEmail string
		SendgridAPIKey   string
		FrontendBaseURL  string
		SeedOnBoot       bool
		WorkDir          string

		PasswordResetTimeoutDelta time.Duration

		Server   ServerConfig
		Storage  StorageConfig
		Database DatabaseConfig
		Graph    GraphConfig
		Content  ContentConfig
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, strconv.Itoa(db.Port))
}

func (conf *Config) IsProduction() bool {
	return conf.Env == "PROD"
}

func newViper() (*viper.Viper, string) {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Elimu")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("frontendBaseUrl", "http://localhost:5173")
	v.SetDefault("seedOnBoot", true)
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("storage.engine", "memory")
	v.SetDefault("storage.badgerDir", "data/badger")
	v.SetDefault("storage.redisAddr", "localhost:6379")
	v.SetDefault("storage.redisPassword", "")
	v.SetDefault("storage.redisDb", 0)
	v.SetDefault("storage.keyPrefix", "elimu:")

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "elimu")
	v.SetDefault("database.user", "elimu")
	v.SetDefault("database.password", "elimu")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTls", true)

	v.SetDefault("graph.engine", "document")
	v.SetDefault("graph.neo4jUri", "")
	v.SetDefault("graph.neo4jUser", "neo4j")
	v.SetDefault("graph.neo4jPassword", "")
	v.SetDefault("graph.neo4jDatabase", "")

	v.SetDefault("content.engine", "offline")
	v.SetDefault("content.apiKey", "")
	v.SetDefault("content.baseUrl", "https://generativelanguage.googleapis.com")
	v.SetDefault("content.model", "gemini-2.0-flash")
	v.SetDefault("content.timeout", 60*time.Second)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
		v.SetDefault("seedOnBoot", false)
	case "QA", "PROD":
		v.SetDefault("debug", false)
	}
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
	return v, env
}

// NewConfig reads the configuration for the current ENV.
func NewConfig() *Config {
	v, env := newViper()

	return &Config{
		AppName:          v.GetString("appName"),
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		SecretKey:        v.GetString("secretKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		DefaultFromEmail: v.GetString("defaultFromEmail"),
		SendgridAPIKey:   v.GetString("sendgridApiKey"),
		FrontendBaseURL:  v.GetString("frontendBaseUrl"),
		SeedOnBoot:       v.GetBool("seedOnBoot"),
		WorkDir:          Getwd(),

		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Address:                   v.GetString("server.address"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			DisableReqLogs:            v.GetBool("server.disableReqLogs"),
		},
		Storage: StorageConfig{
			Engine:        strings.ToLower(v.GetString("storage.engine")),
			BadgerDir:     v.GetString("storage.badgerDir"),
			RedisAddr:     v.GetString("storage.redisAddr"),
			RedisPassword: v.GetString("storage.redisPassword"),
			RedisDB:       v.GetInt("storage.redisDb"),
			KeyPrefix:     v.GetString("storage.keyPrefix"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTls"),
		},
		Graph: GraphConfig{
			Engine:        strings.ToLower(v.GetString("graph.engine")),
			Neo4jURI:      v.GetString("graph.neo4jUri"),
			Neo4jUser:     v.GetString("graph.neo4jUser"),
			Neo4jPassword: v.GetString("graph.neo4jPassword"),
			Neo4jDatabase: v.GetString("graph.neo4jDatabase"),
		},
		Content: ContentConfig{
			Engine:  strings.ToLower(v.GetString("content.engine")),
			APIKey:  v.GetString("content.apiKey"),
			BaseURL: v.GetString("content.baseUrl"),
			Model:   v.GetString("content.model"),
			Timeout: v.GetDuration("content.timeout"),
		},
	}
}

// NewTestConfig returns the configuration used by tests: in-memory storage, offline content.
func NewTestConfig() *Config {
	conf := NewConfig()
	conf.TestMode = true
	conf.SeedOnBoot = false
	conf.Storage.Engine = "memory"
	conf.Graph.Engine = "document"
	conf.Content.Engine = "offline"
	conf.Server.DisableReqLogs = true
	return conf
}
