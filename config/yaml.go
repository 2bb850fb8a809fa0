package config

import (
	"gopkg.in/yaml.v3"
)

type settingsView struct {
	RedisURL       string `yaml:"redis_url"`
	CacheTTL       string `yaml:"cache_ttl"`
	JinaAPIKey     string `yaml:"jina_api_key"`
	RequestTimeout string `yaml:"request_timeout"`
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	Port           int    `yaml:"port"`
	ReaderURL      string `yaml:"jina_reader_url"`
	SearchURL      string `yaml:"jina_search_url"`
	OTLPEndpoint   string `yaml:"otlp_endpoint,omitempty"`
}

// YAML renders the redacted settings, keyed by their environment names in lower case.
func (s Settings) YAML() ([]byte, error) {
	r := s.Redacted()
	return yaml.Marshal(settingsView{
		RedisURL:       r.RedisURL,
		CacheTTL:       r.CacheTTL.String(),
		JinaAPIKey:     r.JinaAPIKey.String(),
		RequestTimeout: r.RequestTimeout.String(),
		LogLevel:       r.LogLevel.String(),
		LogFormat:      r.LogFormat,
		Port:           r.Port,
		ReaderURL:      r.ReaderURL,
		SearchURL:      r.SearchURL,
		OTLPEndpoint:   r.OTLPEndpoint,
	})
}
