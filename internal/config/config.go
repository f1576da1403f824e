package config

import (
	"log"
	"os"
	"strconv"
)

type Config struct {
	Port             string
	ConsulAddress    string
	ServiceName      string
	ServiceID        string
	ServiceAddress   string
	RabbitMQUser     string
	RabbitMQPassword string
	RabbitMQPort     string
	JWTSecret        string
	DefaultPageSize  int
	MaxPageSize      int
}

func init() {
	ServiceConfig = New()
}

var ServiceConfig *Config

func New() *Config {
	default_page_str := getEnv("DEFAULT_PAGE_SIZE", "10")
	default_page, _ := strconv.Atoi(default_page_str)
	max_page_str := getEnv("MAX_PAGE_SIZE", "100")
	max_page, _ := strconv.Atoi(max_page_str)

	return &Config{
		Port:             getEnv("PORT", "9300"),
		RabbitMQUser:     getEnv("RABBITMQ_USER", ""),
		RabbitMQPassword: getEnv("RABBITMQ_PASSWORD", ""),
		RabbitMQPort:     getEnv("RABBITMQ_PORT", ""),
		ConsulAddress:    "consul-server:" + getEnv("CONSUL_PORT", "8500"),
		ServiceName:      getEnv("DOCUMENT_ACCESS_SERVICE_NAME", "document-access-service"),
		ServiceID:        getEnv("DOCUMENT_ACCESS_SERVICE_NAME", "document-access-service") + "-" + getEnv("DOCUMENT_ACCESS_HOSTNAME", "1"),
		ServiceAddress:   getEnv("DOCUMENT_ACCESS_SERVICE_ADDRESS", "document-access-service"),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		DefaultPageSize:  default_page,
		MaxPageSize:      max_page,
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Error Retriving ENV: %s not exist", key)
	return fallback
}

func (c *Config) RabbitMQURI() string {
	if c.RabbitMQUser == "" || c.RabbitMQPort == "" {
		return ""
	}
	return "amqp://" + c.RabbitMQUser + ":" + c.RabbitMQPassword + "@rabbitmq:" + c.RabbitMQPort + "/"
}
