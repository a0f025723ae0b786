package config

import (
	"log"
	"os"
	"time"

	"github.com/drypzz/api-StockSystem/pkg/utils"
	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env         string      `yaml:"env" env:"ENV" env-default:"local"`
	HTTP        HTTP        `yaml:"http"`
	Metrics     Metrics     `yaml:"metrics"`
	Postgres    PG          `yaml:"postgres"`
	Redis       Redis       `yaml:"redis"`
	MercadoPago MercadoPago `yaml:"mercadopago"`
	SMTP        SMTP        `yaml:"smtp"`
	Sweeper     Sweeper     `yaml:"sweeper"`
	Auth        Auth        `yaml:"auth"`
	Limiter     Limiter     `yaml:"limiter"`
}

type HTTP struct {
	Port    string        `yaml:"port" env:"HTTP_PORT" env-default:":8080"`
	Timeout time.Duration `yaml:"timeout" env-default:"4s"`
}

type Metrics struct {
	Port string `yaml:"port" env:"METRICS_PORT" env-default:":9091"`
}

type PG struct {
	URL string `yaml:"url" env:"DB_URL"`
}

type Redis struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	CacheTTL time.Duration `yaml:"cache_ttl" env-default:"10m"`
}

type MercadoPago struct {
	BaseURL     string        `yaml:"base_url" env:"MERCADO_PAGO_BASE_URL" env-default:"https://api.mercadopago.com"`
	AccessToken string        `yaml:"access_token" env:"MERCADO_PAGO_ACCESS_TOKEN"`
	Timeout     time.Duration `yaml:"timeout" env-default:"10s"`
	WebhookURL  string        `yaml:"webhook_url" env:"BACKEND_URL"`
	// How long a PIX charge stays payable before the sweeper may cancel it.
	PaymentTTL time.Duration `yaml:"payment_ttl" env-default:"20m"`
}

type SMTP struct {
	Host     string `yaml:"host" env:"SMTP_HOST"`
	Port     string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	User     string `yaml:"user" env:"SMTP_USER"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
}

type Sweeper struct {
	Interval  time.Duration `yaml:"interval" env:"SWEEPER_INTERVAL" env-default:"1m"`
	BatchSize int           `yaml:"batch_size" env-default:"50"`
}

type Auth struct {
	Secret   string        `yaml:"secret" env:"JWT_SECRET"`
	TokenTTL time.Duration `yaml:"token_ttl" env-default:"15m"`
}

type Limiter struct {
	Max        int           `yaml:"max" env-default:"20"`
	Expiration time.Duration `yaml:"expiration" env-default:"5s"`
}

func MustLoad() *Config {
	configPath := utils.ParseWithFallback("CONFIG_PATH", "./config/local.yaml")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exists: %v\n", err)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("error reading config: %v", err)
	}

	return &cfg
}
