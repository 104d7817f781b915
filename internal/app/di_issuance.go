package app

import (
	"fmt"

	issuanceHTTP "github.com/allisson/offcash/internal/issuance/http"
	issuanceUseCase "github.com/allisson/offcash/internal/issuance/usecase"
)

// IssuanceUseCase returns the token issuer, instrumented when metrics are enabled.
func (c *Container) IssuanceUseCase() (issuanceUseCase.IssuanceUseCase, error) {
	var err error
	c.issuanceUseCaseInit.Do(func() {
		c.issuanceUseCase, err = c.initIssuanceUseCase()
		if err != nil {
			c.initErrors["issuanceUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["issuanceUseCase"]; exists {
		return nil, storedErr
	}
	return c.issuanceUseCase, nil
}

// IssueHandler returns the HTTP handler for token issuance.
func (c *Container) IssueHandler() (*issuanceHTTP.IssueHandler, error) {
	var err error
	c.issueHandlerInit.Do(func() {
		c.issueHandler, err = c.initIssueHandler()
		if err != nil {
			c.initErrors["issueHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["issueHandler"]; exists {
		return nil, storedErr
	}
	return c.issueHandler, nil
}

func (c *Container) initIssuanceUseCase() (issuanceUseCase.IssuanceUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for issuance use case: %w", err)
	}
	issuerKey, err := c.IssuerKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get issuer key for issuance use case: %w", err)
	}
	accountRepo, err := c.AccountRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get account repository for issuance use case: %w", err)
	}
	issuedRepo, err := c.IssuedTokenRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get issued token repository for issuance use case: %w", err)
	}
	movementRepo, err := c.MovementRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get movement repository for issuance use case: %w", err)
	}
	allocRepo, err := c.AllocationRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get allocation repository for issuance use case: %w", err)
	}
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for issuance use case: %w", err)
	}

	useCase := issuanceUseCase.NewIssuanceUseCase(
		issuanceUseCase.Config{
			DefaultValidity: c.config.TokenDefaultValidity,
			MaxValidity:     c.config.TokenMaxValidity,
			Denominations:   c.config.Denominations(),
		},
		txManager,
		c.SignatureCodec(),
		issuerKey,
		accountRepo,
		issuedRepo,
		movementRepo,
		allocRepo,
	)
	return issuanceUseCase.NewIssuanceUseCaseWithMetrics(useCase, businessMetrics), nil
}

func (c *Container) initIssueHandler() (*issuanceHTTP.IssueHandler, error) {
	useCase, err := c.IssuanceUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get issuance use case for issue handler: %w", err)
	}
	return issuanceHTTP.NewIssueHandler(useCase, c.Logger()), nil
}
