package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/allisson/offcash/cmd/app/commands"
	"github.com/allisson/offcash/internal/app"
	"github.com/allisson/offcash/internal/config"
	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	"github.com/allisson/offcash/internal/holder/client"
	"github.com/allisson/offcash/internal/holder/store"
	"github.com/allisson/offcash/internal/holder/transfer"
)

// holderEnv bundles what every holder command opens.
type holderEnv struct {
	cfg       *config.Config
	container *app.Container
	store     *store.Store
}

func openHolder(cmd *cli.Command) (*holderEnv, error) {
	cfg := config.Load()
	if dir := cmd.String("data-dir"); dir != "" {
		cfg.HolderDataDir = dir
	}
	if url := cmd.String("authority-url"); url != "" {
		cfg.AuthorityURL = url
	}

	holderStore, err := store.Open(cfg.HolderDataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open holder store: %w", err)
	}
	return &holderEnv{cfg: cfg, container: app.NewContainer(cfg), store: holderStore}, nil
}

func (e *holderEnv) close(ctx context.Context) {
	_ = e.store.Close()
	_ = e.container.Shutdown(ctx)
}

func (e *holderEnv) deviceKey() (*cryptoDomain.PrivateKey, error) {
	key, err := e.store.DeviceKey()
	if err != nil {
		return nil, fmt.Errorf("no device key, run 'holder keygen' first: %w", err)
	}
	return key, nil
}

func (e *holderEnv) authority() *client.Client {
	return client.New(client.Config{
		BaseURL: e.cfg.AuthorityURL,
		Timeout: e.cfg.HolderRequestTimeout,
	}, e.container.Logger())
}

func (e *holderEnv) syncer(accountID string) (*client.Syncer, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return nil, fmt.Errorf("invalid account id: %w", err)
	}
	key, err := e.deviceKey()
	if err != nil {
		return nil, err
	}
	return client.NewSyncer(
		e.store,
		e.authority(),
		e.container.SignatureCodec(),
		key,
		id,
		e.cfg.IssuerKeyID,
		e.container.Logger(),
	), nil
}

func holderFlags(extra ...cli.Flag) []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "data-dir",
			Usage: "Holder store directory (defaults to HOLDER_DATA_DIR)",
		},
	}
	return append(flags, extra...)
}

func authorityFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "authority-url",
		Usage: "Authority base URL (defaults to AUTHORITY_URL)",
	}
}

func accountFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "account-id",
		Aliases:  []string{"a"},
		Required: true,
		Usage:    "Authority account the holder withdraws from and redeems into",
	}
}

func getHolderCommands() *cli.Command {
	return &cli.Command{
		Name:  "holder",
		Usage: "Operate a holder device: keys, balance and offline transfers",
		Commands: []*cli.Command{
			{
				Name:  "keygen",
				Usage: "Generate the device key and optionally register it with the authority",
				Flags: holderFlags(
					authorityFlag(),
					&cli.StringFlag{
						Name:    "register",
						Aliases: []string{"r"},
						Usage:   "Register the public key under this identifier",
					},
					formatFlag(),
				),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					env, err := openHolder(cmd)
					if err != nil {
						return err
					}
					defer env.close(ctx)

					var registrar commands.KeyRegistrar
					if cmd.String("register") != "" {
						registrar = env.authority()
					}
					return commands.RunHolderKeygen(
						ctx,
						env.store,
						registrar,
						env.container.Logger(),
						commands.DefaultIO().Writer,
						cmd.String("register"),
						cmd.String("format"),
					)
				},
			},
			{
				Name:  "balance",
				Usage: "Show held tokens and the available balance",
				Flags: holderFlags(formatFlag()),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					env, err := openHolder(cmd)
					if err != nil {
						return err
					}
					defer env.close(ctx)

					return commands.RunHolderBalance(
						env.store,
						commands.DefaultIO().Writer,
						time.Now(),
						cmd.String("format"),
					)
				},
			},
			{
				Name:  "withdraw",
				Usage: "Issue tokens from the account to this device",
				Flags: holderFlags(
					authorityFlag(),
					accountFlag(),
					&cli.StringFlag{
						Name:     "amount",
						Required: true,
						Usage:    "Amount to withdraw (e.g., 25.00)",
					},
					&cli.DurationFlag{
						Name:  "validity",
						Usage: "Token validity (defaults to the authority's policy)",
					},
					formatFlag(),
				),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					env, err := openHolder(cmd)
					if err != nil {
						return err
					}
					defer env.close(ctx)

					syncer, err := env.syncer(cmd.String("account-id"))
					if err != nil {
						return err
					}
					return commands.RunHolderWithdraw(
						ctx,
						syncer,
						env.container.Logger(),
						commands.DefaultIO().Writer,
						cmd.String("amount"),
						cmd.Duration("validity"),
						time.Now(),
						cmd.String("format"),
					)
				},
			},
			{
				Name:  "receive",
				Usage: "Listen for offline transfers from peers",
				Flags: holderFlags(
					&cli.StringFlag{
						Name:  "listen",
						Value: "127.0.0.1:9090",
						Usage: "Address to accept peer connections on",
					},
				),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					env, err := openHolder(cmd)
					if err != nil {
						return err
					}
					defer env.close(ctx)

					key, err := env.deviceKey()
					if err != nil {
						return err
					}
					listener, err := net.Listen("tcp", cmd.String("listen"))
					if err != nil {
						return fmt.Errorf("failed to listen: %w", err)
					}

					ctx, cancel := signalContext(ctx)
					defer cancel()

					logger := env.container.Logger()
					receiver := transfer.NewReceiver(env.store, env.container.SignatureCodec(), key, logger)
					return commands.RunHolderReceive(ctx, receiver, logger, commands.DefaultIO().Writer, listener)
				},
			},
			{
				Name:  "send",
				Usage: "Transfer value to a peer over a direct connection",
				Flags: holderFlags(
					&cli.StringFlag{
						Name:     "peer",
						Required: true,
						Usage:    "Peer websocket URL (e.g., ws://192.168.1.20:9090/transfer)",
					},
					&cli.StringFlag{
						Name:  "to",
						Usage: "Recipient public key (hex)",
					},
					&cli.StringFlag{
						Name:  "amount",
						Usage: "Amount to send",
					},
					&cli.StringFlag{
						Name:  "resume",
						Usage: "Resume the pending session with this id",
					},
					formatFlag(),
				),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					env, err := openHolder(cmd)
					if err != nil {
						return err
					}
					defer env.close(ctx)

					key, err := env.deviceKey()
					if err != nil {
						return err
					}

					sendConfig := transfer.DefaultConfig()
					sendConfig.MaxElapsedTime = env.cfg.TransferAckTimeout
					logger := env.container.Logger()
					sender := transfer.NewSender(env.store, env.container.SignatureCodec(), key, sendConfig, logger)

					return commands.RunHolderSend(
						ctx,
						sender,
						logger,
						commands.DefaultIO().Writer,
						cmd.String("peer"),
						cmd.String("to"),
						cmd.String("amount"),
						cmd.String("resume"),
						cmd.String("format"),
					)
				},
			},
			{
				Name:  "sync",
				Usage: "Redeem held tokens with the authority",
				Flags: holderFlags(authorityFlag(), accountFlag(), formatFlag()),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					env, err := openHolder(cmd)
					if err != nil {
						return err
					}
					defer env.close(ctx)

					syncer, err := env.syncer(cmd.String("account-id"))
					if err != nil {
						return err
					}
					return commands.RunHolderSync(
						ctx,
						syncer,
						env.container.Logger(),
						commands.DefaultIO().Writer,
						time.Now(),
						cmd.String("format"),
					)
				},
			},
		},
	}
}
