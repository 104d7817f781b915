package app

import (
	"fmt"

	expirationUseCase "github.com/allisson/offcash/internal/expiration/usecase"
	outboxUseCase "github.com/allisson/offcash/internal/outbox/usecase"
)

// ExpirationUseCase returns the expiration reclaimer.
func (c *Container) ExpirationUseCase() (expirationUseCase.ExpirationUseCase, error) {
	var err error
	c.expirationUseCaseInit.Do(func() {
		c.expirationUseCase, err = c.initExpirationUseCase()
		if err != nil {
			c.initErrors["expirationUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["expirationUseCase"]; exists {
		return nil, storedErr
	}
	return c.expirationUseCase, nil
}

// OutboxUseCase returns the outbox worker that publishes security events.
func (c *Container) OutboxUseCase() (outboxUseCase.UseCase, error) {
	var err error
	c.outboxUseCaseInit.Do(func() {
		c.outboxUseCase, err = c.initOutboxUseCase()
		if err != nil {
			c.initErrors["outboxUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["outboxUseCase"]; exists {
		return nil, storedErr
	}
	return c.outboxUseCase, nil
}

func (c *Container) initExpirationUseCase() (expirationUseCase.ExpirationUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for expiration use case: %w", err)
	}
	issuedRepo, err := c.IssuedTokenRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get issued token repository for expiration use case: %w", err)
	}
	allocRepo, err := c.AllocationRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get allocation repository for expiration use case: %w", err)
	}
	accountRepo, err := c.AccountRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get account repository for expiration use case: %w", err)
	}
	movementRepo, err := c.MovementRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get movement repository for expiration use case: %w", err)
	}

	return expirationUseCase.NewExpirationUseCase(
		expirationUseCase.Config{
			Interval:  c.config.ExpirationSweepInterval,
			BatchSize: c.config.ExpirationBatchSize,
		},
		txManager,
		issuedRepo,
		allocRepo,
		accountRepo,
		movementRepo,
		c.Logger(),
	), nil
}

// initOutboxUseCase creates the outbox use case with all its dependencies.
func (c *Container) initOutboxUseCase() (outboxUseCase.UseCase, error) {
	logger := c.Logger()

	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for outbox use case: %w", err)
	}

	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for outbox use case: %w", err)
	}

	useCaseConfig := outboxUseCase.Config{
		Interval:   c.config.OutboxPollInterval,
		BatchSize:  c.config.OutboxBatchSize,
		MaxRetries: c.config.OutboxMaxRetries,
	}

	eventProcessor := outboxUseCase.NewSecurityEventProcessor(logger)
	return outboxUseCase.NewOutboxUseCase(useCaseConfig, txManager, outboxRepo, eventProcessor, logger), nil
}
