package app

import (
	"fmt"

	keyregistryHTTP "github.com/allisson/offcash/internal/keyregistry/http"
	keyregistryRepository "github.com/allisson/offcash/internal/keyregistry/repository"
	keyregistryMySQL "github.com/allisson/offcash/internal/keyregistry/repository/mysql"
	keyregistryUseCase "github.com/allisson/offcash/internal/keyregistry/usecase"
)

// PublicKeyRepository returns the public key repository based on database driver.
func (c *Container) PublicKeyRepository() (keyregistryUseCase.PublicKeyRepository, error) {
	var err error
	c.publicKeyRepositoryInit.Do(func() {
		c.publicKeyRepository, err = c.initPublicKeyRepository()
		if err != nil {
			c.initErrors["publicKeyRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["publicKeyRepository"]; exists {
		return nil, storedErr
	}
	return c.publicKeyRepository, nil
}

// KeyRegistryUseCase returns the public key registry use case.
func (c *Container) KeyRegistryUseCase() (keyregistryUseCase.KeyRegistryUseCase, error) {
	var err error
	c.keyRegistryUseCaseInit.Do(func() {
		c.keyRegistryUseCase, err = c.initKeyRegistryUseCase()
		if err != nil {
			c.initErrors["keyRegistryUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyRegistryUseCase"]; exists {
		return nil, storedErr
	}
	return c.keyRegistryUseCase, nil
}

// PublicKeyHandler returns the HTTP handler for the public key registry.
func (c *Container) PublicKeyHandler() (*keyregistryHTTP.PublicKeyHandler, error) {
	var err error
	c.publicKeyHandlerInit.Do(func() {
		c.publicKeyHandler, err = c.initPublicKeyHandler()
		if err != nil {
			c.initErrors["publicKeyHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["publicKeyHandler"]; exists {
		return nil, storedErr
	}
	return c.publicKeyHandler, nil
}

// initPublicKeyRepository creates the public key repository for the configured driver.
func (c *Container) initPublicKeyRepository() (keyregistryUseCase.PublicKeyRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for public key repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return keyregistryMySQL.NewMySQLPublicKeyRepository(db), nil
	case "postgres":
		return keyregistryRepository.NewPostgreSQLPublicKeyRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initKeyRegistryUseCase() (keyregistryUseCase.KeyRegistryUseCase, error) {
	repo, err := c.PublicKeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get public key repository for key registry use case: %w", err)
	}
	return keyregistryUseCase.NewKeyRegistryUseCase(repo), nil
}

func (c *Container) initPublicKeyHandler() (*keyregistryHTTP.PublicKeyHandler, error) {
	useCase, err := c.KeyRegistryUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get key registry use case for public key handler: %w", err)
	}
	return keyregistryHTTP.NewPublicKeyHandler(useCase, c.Logger()), nil
}
