package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/monitorasaude/api/internal/app"
	"github.com/monitorasaude/api/internal/auth"
	"github.com/monitorasaude/api/internal/config"
	"github.com/monitorasaude/api/internal/db"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	rootCmd := &cobra.Command{
		Use:           "saudectl",
		Short:         "Operação da API Monitora Saúde",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(adminCmd())
	rootCmd.AddCommand(hashCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("saudectl")
		os.Exit(1)
	}
}

func withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrações do banco remoto",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Aplica migrações pendentes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.RemoteConfigured() {
				return errors.New("defina DB_DSN")
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DBDSN, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				if pool != nil {
					pool.Close()
				}
				return err
			}
			defer pool.Close()

			count, err := db.Migrate(ctx, pool)
			if err != nil {
				return fmt.Errorf("migração falhou: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d migração(ões) aplicada(s)\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Lista migrações aplicadas e pendentes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.RemoteConfigured() {
				return errors.New("defina DB_DSN")
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DBDSN, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				if pool != nil {
					pool.Close()
				}
				return err
			}
			defer pool.Close()

			statuses, err := db.Status(ctx, pool)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-8s %-32s %-9s %s\n", "VERSÃO", "NOME", "ESTADO", "APLICADA EM")
			for _, s := range statuses {
				state, at := "pendente", ""
				if s.Applied {
					state = "aplicada"
					if s.AppliedAt != nil {
						at = s.AppliedAt.Format(time.DateTime)
					}
				}
				fmt.Fprintf(out, "%-8d %-32s %-9s %s\n", s.Version, s.Name, state, at)
			}
			return nil
		},
	})

	return cmd
}

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fila local de escritas",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Mostra o modo e a fila pendente",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				a.Link.Mode(ctx)
				return printJSON(cmd.OutOrStdout(), a.Link.Status())
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "flush",
		Short: "Envia a fila local ao banco remoto",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				res, err := a.Monitor.Sync(ctx)
				if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
					return perr
				}
				return err
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "failed",
		Short: "Lista escritas rejeitadas pelo remoto",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				failed, err := a.Registry.Outbox().Failed(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), failed)
			})
		},
	})

	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Grava os indicadores padrão",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				if err := a.Seed(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "indicadores padrão gravados (modo %s)\n", a.Link.Status().Mode)
				return nil
			})
		},
	}
}

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administradores",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Cadastra um administrador (senha lida da entrada padrão)",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			name, _ := cmd.Flags().GetString("name")
			password, err := readSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app.App) error {
				admin, err := a.Accounts.CreateAdmin(ctx, email, name, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "administrador %s criado (%s)\n", admin.Email, admin.ID)
				return nil
			})
		},
	}
	create.Flags().String("email", "", "e-mail do administrador")
	create.Flags().String("name", "", "nome do administrador")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("name")
	cmd.AddCommand(create)

	return cmd
}

func hashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Imprime o hash argon2id de uma senha lida da entrada padrão",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}
			hash, err := auth.Hash(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

// readSecret lê uma linha da entrada; senhas não passam por argumentos.
func readSecret(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return "", errors.New("senha vazia")
	}
	return secret, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
