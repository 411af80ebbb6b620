package config

const (
	defaultTransport        = TransportStdio
	defaultReconnectSeconds = 1
	defaultWebAddr          = "127.0.0.1:8080"
	defaultTitle            = "nagopanel"
	defaultHighlightStyle   = "github"
)

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Host: HostConfig{
			Transport:        defaultTransport,
			ReconnectSeconds: defaultReconnectSeconds,
		},
		Web: WebConfig{
			Addr:  defaultWebAddr,
			Title: defaultTitle,
		},
		Render: RenderConfig{
			HighlightStyle: defaultHighlightStyle,
		},
		Logging: defaultLoggingConfig(),
	}
}

func defaultLoggingConfig() LoggingConfig {
	enabled := true
	return LoggingConfig{
		Enabled: &enabled,
		Level:   "info",
		Format:  "text",
		File:    "logs/nagopanel.log",
	}
}

func (c *Config) applyDefaults() {
	if c.Host.Transport == "" {
		c.Host.Transport = defaultTransport
	}
	if c.Host.ReconnectSeconds <= 0 {
		c.Host.ReconnectSeconds = defaultReconnectSeconds
	}
	if c.Web.Addr == "" {
		c.Web.Addr = defaultWebAddr
	}
	if c.Web.Title == "" {
		c.Web.Title = defaultTitle
	}
	if c.Render.HighlightStyle == "" {
		c.Render.HighlightStyle = defaultHighlightStyle
	}

	def := defaultLoggingConfig()
	if c.Logging == (LoggingConfig{}) {
		c.Logging = def
		return
	}
	if c.Logging.Enabled == nil {
		c.Logging.Enabled = def.Enabled
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Format
	}
	if c.Logging.File == "" {
		c.Logging.File = def.File
	}
}
