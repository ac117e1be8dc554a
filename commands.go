package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"appointment-notifier/models"
	"appointment-notifier/routes"
	"appointment-notifier/services"
	"appointment-notifier/utils"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"sigs.k8s.io/yaml"
)

const shutdownTimeout = 10 * time.Second

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Select today's and tomorrow's appointments and send reminders once",
		RunE:  runReminders,
	}
}

func runReminders(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer func() { _ = a.logger.Sync() }()

	a.sugar.Infof("--- Starting Universal Appointment Notifier ---")

	if err := a.cfg.CheckEnvironment(); err != nil {
		a.sugar.Errorf("FATAL: %v", err)
		a.sugar.Warnf("System startup aborted. Please check missing files.")
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := a.service.Run(ctx)
	if err != nil {
		return err
	}

	for _, ch := range summary.Result.Channels {
		if ch.Aborted {
			a.sugar.Warnf("%s channel stopped early: %s", ch.Channel, ch.Error)
		}
	}
	return nil
}

func previewCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the appointments a run would notify, without sending",
		Long: `Print the current worklist: every appointment dated today or tomorrow
together with the reminder type it would receive.

Examples:
  # Table output
  appointment-notifier preview

  # JSON for scripting
  appointment-notifier preview -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()

			worklist, err := a.service.Pending()
			if err != nil {
				return err
			}
			return writeWorklist(cmd.OutOrStdout(), worklist, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table, json, yaml")
	return cmd
}

func writeWorklist(w io.Writer, worklist []*models.Appointment, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(worklist)
	case "yaml":
		data, err := yaml.Marshal(worklist)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case "table":
		if len(worklist) == 0 {
			_, err := fmt.Fprintln(w, "No appointments found that require notification today.")
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "DATE\tTIME\tCLIENT\tSERVICE\tEMAIL\tPHONE\tREMINDER")
		for _, apt := range worklist {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				apt.GetOr(models.FieldDate, "-"),
				apt.GetOr(models.FieldTime, "-"),
				apt.GetOr(models.FieldClientName, "-"),
				apt.GetOr(models.FieldService, "-"),
				apt.GetOr(models.FieldEmail, "-"),
				apt.GetOr(models.FieldPhone, "-"),
				apt.GetOr(models.FieldReminderType, "-"))
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func serveCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the admin API and send reminders on the configured schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()

			if port != "" {
				a.cfg.Server.Port = port
			}
			return serve(cmd.Context(), a)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Listen port (overrides PORT)")
	return cmd
}

func serve(parent context.Context, a *app) error {
	if err := a.cfg.ValidateServer(); err != nil {
		return err
	}

	gin.SetMode(a.cfg.Server.GinMode)
	router := routes.SetupRouter(a.cfg, a.service, a.logger)
	printRoutes(a, router)

	srv := &http.Server{
		Addr:              ":" + a.cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	scheduler := services.NewScheduler(a.service, a.sugar)
	if err := scheduler.Start(a.cfg.Schedule); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.sugar.Infof("Admin API listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin API: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.sugar.Infof("Shutting down...")
		scheduler.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func secretCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Print admin API credentials for the .env file",
		Long: `Print a random JWT_SECRET and, with --password, the matching
ADMIN_PASSWORD_HASH for the admin API.

Examples:
  appointment-notifier secret --password 'change-me' >> .env`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeCredentials(cmd.OutOrStdout(), password)
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Admin password to hash")
	return cmd
}

func writeCredentials(w io.Writer, password string) error {
	secret, err := utils.GenerateSecret(32)
	if err != nil {
		return fmt.Errorf("failed to generate secret: %w", err)
	}
	fmt.Fprintf(w, "JWT_SECRET=%s\n", secret)

	if password == "" {
		return nil
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	_, err = fmt.Fprintf(w, "ADMIN_PASSWORD_HASH=%s\n", hash)
	return err
}

func printRoutes(a *app, r *gin.Engine) {
	for _, route := range r.Routes() {
		a.sugar.Debugf("%-6s %s", route.Method, route.Path)
	}
}
