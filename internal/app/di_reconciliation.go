package app

import (
	"fmt"

	outboxRepository "github.com/allisson/offcash/internal/outbox/repository"
	outboxUseCase "github.com/allisson/offcash/internal/outbox/usecase"
	reconciliationHTTP "github.com/allisson/offcash/internal/reconciliation/http"
	reconciliationRepository "github.com/allisson/offcash/internal/reconciliation/repository"
	reconciliationMySQL "github.com/allisson/offcash/internal/reconciliation/repository/mysql"
	reconciliationUseCase "github.com/allisson/offcash/internal/reconciliation/usecase"
)

// SpentTokenRepository returns the spent token repository based on database driver.
func (c *Container) SpentTokenRepository() (reconciliationUseCase.SpentTokenRepository, error) {
	var err error
	c.spentTokenRepositoryInit.Do(func() {
		c.spentTokenRepository, err = c.initSpentTokenRepository()
		if err != nil {
			c.initErrors["spentTokenRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["spentTokenRepository"]; exists {
		return nil, storedErr
	}
	return c.spentTokenRepository, nil
}

// AllocationRepository returns the value allocation repository based on database driver.
func (c *Container) AllocationRepository() (reconciliationUseCase.AllocationRepository, error) {
	var err error
	c.allocationRepositoryInit.Do(func() {
		c.allocationRepository, err = c.initAllocationRepository()
		if err != nil {
			c.initErrors["allocationRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["allocationRepository"]; exists {
		return nil, storedErr
	}
	return c.allocationRepository, nil
}

// AuditRepository returns the double-spend audit repository based on database driver.
func (c *Container) AuditRepository() (reconciliationUseCase.AuditRepository, error) {
	var err error
	c.auditRepositoryInit.Do(func() {
		c.auditRepository, err = c.initAuditRepository()
		if err != nil {
			c.initErrors["auditRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["auditRepository"]; exists {
		return nil, storedErr
	}
	return c.auditRepository, nil
}

// OutboxRepository returns the outbox event repository based on database driver.
func (c *Container) OutboxRepository() (outboxUseCase.OutboxEventRepository, error) {
	var err error
	c.outboxRepositoryInit.Do(func() {
		c.outboxRepository, err = c.initOutboxRepository()
		if err != nil {
			c.initErrors["outboxRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["outboxRepository"]; exists {
		return nil, storedErr
	}
	return c.outboxRepository, nil
}

// ReconciliationUseCase returns the reconciliation engine, instrumented when metrics are enabled.
func (c *Container) ReconciliationUseCase() (reconciliationUseCase.ReconciliationUseCase, error) {
	var err error
	c.reconciliationUseCaseInit.Do(func() {
		c.reconciliationUseCase, err = c.initReconciliationUseCase()
		if err != nil {
			c.initErrors["reconciliationUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["reconciliationUseCase"]; exists {
		return nil, storedErr
	}
	return c.reconciliationUseCase, nil
}

// AuditUseCase returns the audit trail use case.
func (c *Container) AuditUseCase() (reconciliationUseCase.AuditUseCase, error) {
	var err error
	c.auditUseCaseInit.Do(func() {
		c.auditUseCase, err = c.initAuditUseCase()
		if err != nil {
			c.initErrors["auditUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["auditUseCase"]; exists {
		return nil, storedErr
	}
	return c.auditUseCase, nil
}

// RedeemHandler returns the HTTP handler for redemption.
func (c *Container) RedeemHandler() (*reconciliationHTTP.RedeemHandler, error) {
	var err error
	c.redeemHandlerInit.Do(func() {
		c.redeemHandler, err = c.initRedeemHandler()
		if err != nil {
			c.initErrors["redeemHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["redeemHandler"]; exists {
		return nil, storedErr
	}
	return c.redeemHandler, nil
}

// AuditHandler returns the HTTP handler for the audit trail.
func (c *Container) AuditHandler() (*reconciliationHTTP.AuditHandler, error) {
	var err error
	c.auditHandlerInit.Do(func() {
		c.auditHandler, err = c.initAuditHandler()
		if err != nil {
			c.initErrors["auditHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["auditHandler"]; exists {
		return nil, storedErr
	}
	return c.auditHandler, nil
}

// initSpentTokenRepository creates the spent token repository for the configured driver.
func (c *Container) initSpentTokenRepository() (reconciliationUseCase.SpentTokenRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for spent token repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return reconciliationMySQL.NewMySQLSpentTokenRepository(db), nil
	case "postgres":
		return reconciliationRepository.NewPostgreSQLSpentTokenRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initAllocationRepository creates the allocation repository for the configured driver.
func (c *Container) initAllocationRepository() (reconciliationUseCase.AllocationRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for allocation repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return reconciliationMySQL.NewMySQLAllocationRepository(db), nil
	case "postgres":
		return reconciliationRepository.NewPostgreSQLAllocationRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initAuditRepository creates the audit repository for the configured driver.
func (c *Container) initAuditRepository() (reconciliationUseCase.AuditRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for audit repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return reconciliationMySQL.NewMySQLAuditRepository(db), nil
	case "postgres":
		return reconciliationRepository.NewPostgreSQLAuditRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initOutboxRepository creates the outbox repository for the configured driver.
func (c *Container) initOutboxRepository() (outboxUseCase.OutboxEventRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for outbox repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return outboxRepository.NewMySQLOutboxEventRepository(db), nil
	case "postgres":
		return outboxRepository.NewPostgreSQLOutboxEventRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initReconciliationUseCase() (reconciliationUseCase.ReconciliationUseCase, error) {
	deps := reconciliationUseCase.Dependencies{
		Verifier: c.SignatureCodec(),
		Logger:   c.Logger(),
	}

	var err error
	if deps.TxManager, err = c.TxManager(); err != nil {
		return nil, fmt.Errorf("failed to get tx manager for reconciliation use case: %w", err)
	}
	issuerKey, err := c.IssuerKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get issuer key for reconciliation use case: %w", err)
	}
	deps.IssuerKey = issuerKey.PublicKey()
	if deps.SpentRepo, err = c.SpentTokenRepository(); err != nil {
		return nil, fmt.Errorf("failed to get spent token repository for reconciliation use case: %w", err)
	}
	if deps.AllocationRepo, err = c.AllocationRepository(); err != nil {
		return nil, fmt.Errorf("failed to get allocation repository for reconciliation use case: %w", err)
	}
	if deps.AuditRepo, err = c.AuditRepository(); err != nil {
		return nil, fmt.Errorf("failed to get audit repository for reconciliation use case: %w", err)
	}
	if deps.AccountRepo, err = c.AccountRepository(); err != nil {
		return nil, fmt.Errorf("failed to get account repository for reconciliation use case: %w", err)
	}
	if deps.MovementRepo, err = c.MovementRepository(); err != nil {
		return nil, fmt.Errorf("failed to get movement repository for reconciliation use case: %w", err)
	}
	if deps.IssuedRepo, err = c.IssuedTokenRepository(); err != nil {
		return nil, fmt.Errorf("failed to get issued token repository for reconciliation use case: %w", err)
	}
	if deps.OutboxRepo, err = c.OutboxRepository(); err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for reconciliation use case: %w", err)
	}
	if deps.AuditSigner, err = c.AuditSigner(); err != nil {
		return nil, fmt.Errorf("failed to get audit signer for reconciliation use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for reconciliation use case: %w", err)
	}

	useCase := reconciliationUseCase.NewReconciliationUseCase(deps)
	return reconciliationUseCase.NewReconciliationUseCaseWithMetrics(useCase, businessMetrics), nil
}

func (c *Container) initAuditUseCase() (reconciliationUseCase.AuditUseCase, error) {
	auditRepo, err := c.AuditRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit repository for audit use case: %w", err)
	}
	auditSigner, err := c.AuditSigner()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit signer for audit use case: %w", err)
	}
	return reconciliationUseCase.NewAuditUseCase(auditRepo, auditSigner), nil
}

func (c *Container) initRedeemHandler() (*reconciliationHTTP.RedeemHandler, error) {
	useCase, err := c.ReconciliationUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get reconciliation use case for redeem handler: %w", err)
	}
	return reconciliationHTTP.NewRedeemHandler(useCase, c.Logger()), nil
}

func (c *Container) initAuditHandler() (*reconciliationHTTP.AuditHandler, error) {
	useCase, err := c.AuditUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit use case for audit handler: %w", err)
	}
	return reconciliationHTTP.NewAuditHandler(useCase, c.Logger()), nil
}
