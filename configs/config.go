package configs

import (
	"errors"
	"time"

	"github.com/TEESTIMONY/playmarket-api/internal/logger"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`
	DB struct {
		Driver string `mapstructure:"driver"` // postgres | sqlite
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"db"`
	JWT struct {
		SECRET string `mapstructure:"secret"`
	} `mapstructure:"jwt"`
	Admin struct {
		Emails []string `mapstructure:"emails"`
	} `mapstructure:"admin"`
	House struct {
		Email string `mapstructure:"email"`
	} `mapstructure:"house"`
	Auction struct {
		SnipeThresholdSeconds int `mapstructure:"snipe-threshold-seconds"`
		SnipeExtensionSeconds int `mapstructure:"snipe-extension-seconds"`
		SweepIntervalSeconds  int `mapstructure:"sweep-interval-seconds"`
		LockTimeoutMillis     int `mapstructure:"lock-timeout-millis"`
	} `mapstructure:"auction"`
	PlayEngine struct {
		TransferURL    string `mapstructure:"transfer-url"`
		APIKey         string `mapstructure:"api-key"`
		TimeoutSeconds int    `mapstructure:"timeout-seconds"`
	} `mapstructure:"playengine"`
}

func (c *Config) SnipeThreshold() time.Duration {
	return time.Duration(c.Auction.SnipeThresholdSeconds) * time.Second
}

func (c *Config) SnipeExtension() time.Duration {
	return time.Duration(c.Auction.SnipeExtensionSeconds) * time.Second
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Auction.SweepIntervalSeconds) * time.Second
}

func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.Auction.LockTimeoutMillis) * time.Millisecond
}

var AppConfig Config

func LoadConfig() {
	viper.AddConfigPath("./configs")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("db.driver", "postgres")
	viper.SetDefault("house.email", "house@playmarket.local")
	viper.SetDefault("auction.snipe-threshold-seconds", 180)
	viper.SetDefault("auction.snipe-extension-seconds", 180)
	viper.SetDefault("auction.sweep-interval-seconds", 15)
	viper.SetDefault("auction.lock-timeout-millis", 3000)
	viper.SetDefault("playengine.timeout-seconds", 10)

	viper.AutomaticEnv()

	var fileLookupError viper.ConfigFileNotFoundError
	if err := viper.ReadInConfig(); err != nil {
		if errors.As(err, &fileLookupError) {
			logger.Log.Fatal("config file not found", zap.Error(err))
		}
		logger.Log.Fatal("failed to read config", zap.Error(err))
	}

	viper.Unmarshal(&AppConfig)
}
