package app

import (
	"context"
	"fmt"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	cryptoService "github.com/allisson/offcash/internal/crypto/service"
	reconciliationService "github.com/allisson/offcash/internal/reconciliation/service"
)

// SignatureCodec returns the secp256k1 signature codec.
func (c *Container) SignatureCodec() cryptoService.SignatureCodec {
	c.signatureCodecInit.Do(func() {
		c.signatureCodec = cryptoService.NewSignatureCodec()
	})
	return c.signatureCodec
}

// KMSService returns the KMS service.
func (c *Container) KMSService() cryptoService.KMSService {
	c.kmsServiceInit.Do(func() {
		c.kmsService = cryptoService.NewKMSService()
	})
	return c.kmsService
}

// IssuerKey returns the issuer signing key, unwrapped through KMS when KMS_KEY_URI is set.
func (c *Container) IssuerKey() (*cryptoDomain.PrivateKey, error) {
	var err error
	c.issuerKeyInit.Do(func() {
		c.issuerKey, err = c.initIssuerKey()
		if err != nil {
			c.initErrors["issuerKey"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["issuerKey"]; exists {
		return nil, storedErr
	}
	return c.issuerKey, nil
}

// AuditSigner returns the signer for double-spend audit records.
func (c *Container) AuditSigner() (reconciliationService.AuditSigner, error) {
	var err error
	c.auditSignerInit.Do(func() {
		c.auditSigner, err = c.initAuditSigner()
		if err != nil {
			c.initErrors["auditSigner"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["auditSigner"]; exists {
		return nil, storedErr
	}
	return c.auditSigner, nil
}

func (c *Container) initIssuerKey() (*cryptoDomain.PrivateKey, error) {
	key, err := cryptoService.LoadIssuerKey(
		context.Background(),
		c.KMSService(),
		c.config.KMSKeyURI,
		c.config.IssuerPrivateKey,
		c.Logger(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load issuer key: %w", err)
	}
	return key, nil
}

func (c *Container) initAuditSigner() (reconciliationService.AuditSigner, error) {
	if c.config.AuditSigningKey == "" {
		return nil, fmt.Errorf("AUDIT_SIGNING_KEY is not set")
	}
	return reconciliationService.NewAuditSigner([]byte(c.config.AuditSigningKey)), nil
}
