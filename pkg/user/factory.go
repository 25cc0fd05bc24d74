package user

import "fmt"

type RepositoryConfig struct {
	// DB is required for the postgres backend.
	DB DBTX
	// FilePath is required for the file backend.
	FilePath string
}

// NewUserRepository builds the backend named by persistenceType:
// "inmem", "file" or "postgres".
func NewUserRepository(persistenceType string, config RepositoryConfig) (UserRepository, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.DB == nil {
			return nil, fmt.Errorf("db required for postgres repository")
		}
		return NewPostgresUserRepository(config.DB), nil
	case "file":
		if config.FilePath == "" {
			return nil, fmt.Errorf("file path required for file repository")
		}
		return NewFileUserRepository(config.FilePath)
	case "inmem", "":
		return NewInMemUserRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: inmem, file, postgres)", persistenceType)
	}
}
