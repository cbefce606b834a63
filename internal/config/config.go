package config

import (
	"fmt"
	"reflect"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration.
type Config struct {
	EnvVars EnvVars  `json:"env"`
	Prompts *Prompts `json:"-"`
	Voices  []Voice  `json:"-"`
}

// EnvVars holds environment variables required by the application.
// Fields tagged `optional:"true"` are skipped by CheckConfigEnvFields.
type EnvVars struct {
	Port             string        `env:"PORT" envDefault:"8080"`
	JwtSecretKey     string        `env:"JWT_SECRET_KEY"`
	AnthropicAPIKey  string        `env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey     string        `env:"OPENAI_API_KEY" optional:"true"`
	ElevenLabsAPIKey string        `env:"ELEVENLABS_API_KEY" optional:"true"`
	TextProvider     string        `env:"TEXT_PROVIDER" envDefault:"anthropic"`
	DefaultVoiceID   string        `env:"DEFAULT_VOICE_ID" envDefault:"hGb0Exk8cp4vQEnwolxa"`
	QueryTimeout     time.Duration `env:"QUERY_TIMEOUT" envDefault:"30s"`
	SessionIdleTTL   time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`
}

// Voice describes a selectable TTS voice.
type Voice struct {
	ID        string   `yaml:"id" json:"id"`
	Name      string   `yaml:"name" json:"name"`
	Languages []string `yaml:"languages" json:"languages"`
	Indian    bool     `yaml:"indian" json:"indian"`
}

// LoadConfig parses environment variables into the Config struct.
func LoadConfig() (*Config, error) {
	var config Config
	if err := env.Parse(&config.EnvVars); err != nil {
		return nil, err
	}
	return &config, nil
}

// CheckConfigEnvFields validates that all required EnvVars fields are set.
func (c *Config) CheckConfigEnvFields() error {
	return checkFieldsRecursive(reflect.ValueOf(c.EnvVars))
}

func checkFieldsRecursive(v reflect.Value) error {
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := v.Type().Field(i)
		if fieldType.Tag.Get("optional") == "true" {
			continue
		}
		if isZeroValue(field) {
			return fmt.Errorf("$%s must be set", fieldType.Name)
		}
		if field.Kind() == reflect.Struct {
			if err := checkFieldsRecursive(field); err != nil {
				return err
			}
		}
	}
	return nil
}

func isZeroValue(v reflect.Value) bool {
	return v.Interface() == reflect.Zero(v.Type()).Interface()
}

// TTSConfigured reports whether the voice synthesis collaborator is
// usable. Without an ElevenLabs key the service runs text-only.
func (c *Config) TTSConfigured() bool {
	return c.EnvVars.ElevenLabsAPIKey != ""
}
