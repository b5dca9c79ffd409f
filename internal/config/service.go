package config

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	ClientURL   string `yaml:"client_url"`

	// EscrowAutoReleaseDays is how long escrowed funds are held before an
	// external sweeper may auto-release them to the seller.
	EscrowAutoReleaseDays int `yaml:"escrow_auto_release_days"`
}

type RedisConfig struct {
	// Addr left empty disables event publishing.
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	Output      string `yaml:"output"`
	FilePath    string `yaml:"file_path"`
	Development bool   `yaml:"development"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
}
