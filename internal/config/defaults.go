package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			BotID:    "wechaty-bridge",
			LogLevel: "info",
		},
		Gateway: GatewayConfig{},
		Storage: StorageConfig{
			Bucket:         "wechaty-files",
			Attempts:       3,
			BackoffSeconds: 1,
		},
		Webhook: WebhookConfig{
			Attempts:       3,
			BackoffSeconds: 1,
			TimeoutSeconds: 30,
		},
		Pipeline: PipelineConfig{
			Concurrency:   8,
			BusBuffer:     100,
			TextFileQuirk: false,
		},
		Journal: JournalConfig{
			Enabled: true,
			DBPath:  "~/.wechatbridge/journal.db",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9090",
		},
	}
}
