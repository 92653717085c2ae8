package database

// Config locates the embedded SQLite store and its migration sources.
type Config struct {
	Path          string `yaml:"path" envconfig:"DATABASE_PATH"`
	MigrationsDir string `yaml:"migrations_dir"`
}
