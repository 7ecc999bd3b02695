package config

import "path/filepath"

func Defaults() *Config {
	dir := DefaultConfigDir()
	return &Config{
		General: GeneralConfig{
			LogLevel:    "info",
			UploadsDir:  filepath.Join(dir, "uploads"),
			MaxUploadMB: 20,
		},
		Store: StoreConfig{
			DBPath: filepath.Join(dir, "assistbot.db"),
		},
		Channels: ChannelsConfig{
			Web: WebConfig{
				Enabled:     true,
				Host:        "127.0.0.1",
				Port:        8080,
				CORSOrigins: []string{"*"},
			},
			Bot: BotConfig{
				Enabled: false,
			},
		},
		Provider: ProviderConfig{
			APIBase:     "https://api.openai.com/v1",
			ChatModel:   "gpt-4o-mini",
			VisionModel: "gpt-4o-mini",
		},
		Search: SearchConfig{
			BrowserFallback: false,
		},
	}
}
