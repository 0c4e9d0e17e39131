package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/inboxlab/warmstack/internal/logger"
	"github.com/inboxlab/warmstack/internal/tracing"
)

type Config struct {
	AppConfig      *AppConfig
	Logger         *logger.Config
	Tracing        *tracing.JaegerConfig
	DatabaseConfig *WarmstackDatabaseConfig
	TextGenConfig  *TextGenConfig
	WarmupConfig   *WarmupConfig
}

func InitConfig() (*Config, error) {
	config := &Config{
		AppConfig:      &AppConfig{},
		Logger:         &logger.Config{},
		Tracing:        &tracing.JaegerConfig{},
		DatabaseConfig: &WarmstackDatabaseConfig{},
		TextGenConfig:  &TextGenConfig{},
		WarmupConfig:   &WarmupConfig{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(config)
	if err != nil {
		log.Fatalf("Error loading warmstack config: %v", err)
	}

	return config, nil
}
