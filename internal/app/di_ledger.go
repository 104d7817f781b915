package app

import (
	"fmt"

	ledgerHTTP "github.com/allisson/offcash/internal/ledger/http"
	ledgerRepository "github.com/allisson/offcash/internal/ledger/repository"
	ledgerMySQL "github.com/allisson/offcash/internal/ledger/repository/mysql"
	ledgerUseCase "github.com/allisson/offcash/internal/ledger/usecase"
)

// AccountRepository returns the account repository based on database driver.
func (c *Container) AccountRepository() (ledgerUseCase.AccountRepository, error) {
	var err error
	c.accountRepositoryInit.Do(func() {
		c.accountRepository, err = c.initAccountRepository()
		if err != nil {
			c.initErrors["accountRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["accountRepository"]; exists {
		return nil, storedErr
	}
	return c.accountRepository, nil
}

// MovementRepository returns the movement repository based on database driver.
func (c *Container) MovementRepository() (ledgerUseCase.MovementRepository, error) {
	var err error
	c.movementRepositoryInit.Do(func() {
		c.movementRepository, err = c.initMovementRepository()
		if err != nil {
			c.initErrors["movementRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["movementRepository"]; exists {
		return nil, storedErr
	}
	return c.movementRepository, nil
}

// IssuedTokenRepository returns the issuance record repository based on database driver.
func (c *Container) IssuedTokenRepository() (ledgerUseCase.IssuedTokenRepository, error) {
	var err error
	c.issuedTokenRepositoryInit.Do(func() {
		c.issuedTokenRepository, err = c.initIssuedTokenRepository()
		if err != nil {
			c.initErrors["issuedTokenRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["issuedTokenRepository"]; exists {
		return nil, storedErr
	}
	return c.issuedTokenRepository, nil
}

// LedgerUseCase returns the account ledger use case.
func (c *Container) LedgerUseCase() (ledgerUseCase.LedgerUseCase, error) {
	var err error
	c.ledgerUseCaseInit.Do(func() {
		c.ledgerUseCase, err = c.initLedgerUseCase()
		if err != nil {
			c.initErrors["ledgerUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["ledgerUseCase"]; exists {
		return nil, storedErr
	}
	return c.ledgerUseCase, nil
}

// AccountHandler returns the HTTP handler for account operations.
func (c *Container) AccountHandler() (*ledgerHTTP.AccountHandler, error) {
	var err error
	c.accountHandlerInit.Do(func() {
		c.accountHandler, err = c.initAccountHandler()
		if err != nil {
			c.initErrors["accountHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["accountHandler"]; exists {
		return nil, storedErr
	}
	return c.accountHandler, nil
}

// initAccountRepository creates the account repository for the configured driver.
func (c *Container) initAccountRepository() (ledgerUseCase.AccountRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for account repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return ledgerMySQL.NewMySQLAccountRepository(db), nil
	case "postgres":
		return ledgerRepository.NewPostgreSQLAccountRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initMovementRepository creates the movement repository for the configured driver.
func (c *Container) initMovementRepository() (ledgerUseCase.MovementRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for movement repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return ledgerMySQL.NewMySQLMovementRepository(db), nil
	case "postgres":
		return ledgerRepository.NewPostgreSQLMovementRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initIssuedTokenRepository creates the issued token repository for the configured driver.
func (c *Container) initIssuedTokenRepository() (ledgerUseCase.IssuedTokenRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for issued token repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return ledgerMySQL.NewMySQLIssuedTokenRepository(db), nil
	case "postgres":
		return ledgerRepository.NewPostgreSQLIssuedTokenRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initLedgerUseCase() (ledgerUseCase.LedgerUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for ledger use case: %w", err)
	}
	accountRepo, err := c.AccountRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get account repository for ledger use case: %w", err)
	}
	movementRepo, err := c.MovementRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get movement repository for ledger use case: %w", err)
	}
	return ledgerUseCase.NewLedgerUseCase(txManager, accountRepo, movementRepo), nil
}

func (c *Container) initAccountHandler() (*ledgerHTTP.AccountHandler, error) {
	useCase, err := c.LedgerUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger use case for account handler: %w", err)
	}
	return ledgerHTTP.NewAccountHandler(useCase, c.Logger()), nil
}
