package main

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhookendpoint"

	"guestcharge/services"
	"guestcharge/utils"
)

func newQRCommand() *cobra.Command {
	var (
		chargePoint string
		connector   int
		tenant      string
		publicURL   string
		out         string
		size        int
	)

	cmd := &cobra.Command{
		Use:   "qr",
		Short: "Write the QR code PNG for a charge point connector",
		Example: `  guestcharge qr --charge-point CP-001 --connector 1 --out cp-001-1.png
  guestcharge qr --charge-point CP-001 --connector 2 --tenant acme --public-url https://charge.example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if publicURL == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				publicURL = cfg.HTTP.PublicURL
			}

			q := url.Values{}
			q.Set(services.ParamConnectorID, strconv.Itoa(connector))
			if tenant != "" {
				q.Set(services.ParamTenantID, tenant)
			}
			nav, err := services.ParseNavigation(chargePoint, q, false)
			if err != nil {
				return err
			}

			png, link, err := services.ChargePointQR(publicURL, nav, size)
			if err != nil {
				return err
			}
			if out == "" {
				out = fmt.Sprintf("%s-%d.png", nav.ChargePointID, nav.ConnectorID)
			}
			if err := os.WriteFile(out, png, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", link, out)
			return nil
		},
	}

	cmd.Flags().StringVar(&chargePoint, "charge-point", "", "Charge point id")
	cmd.Flags().IntVar(&connector, "connector", 1, "Connector id")
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant id")
	cmd.Flags().StringVar(&publicURL, "public-url", "", "Public base URL (defaults to http.publicUrl)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (defaults to <charge-point>-<connector>.png)")
	cmd.Flags().IntVar(&size, "size", services.DefaultQRSize, "Image edge length in pixels")
	_ = cmd.MarkFlagRequired("charge-point")
	return cmd
}

// Payment intent events the webhook handler consumes.
var webhookEvents = []string{
	"payment_intent.amount_capturable_updated",
	"payment_intent.processing",
	"payment_intent.payment_failed",
	"payment_intent.canceled",
	"payment_intent.succeeded",
}

func newWebhookCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Manage the payment provider webhook endpoint",
	}

	var endpoint string
	register := &cobra.Command{
		Use:   "register",
		Short: "Register <public-url>/stripe-webhook with Stripe and print the signing secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Stripe.SecretKey == "" {
				return errors.New("stripe.secretKey is required to register a webhook endpoint")
			}
			if endpoint == "" {
				if cfg.HTTP.PublicURL == "" {
					return errors.New("set --url or http.publicUrl")
				}
				endpoint = strings.TrimRight(cfg.HTTP.PublicURL, "/") + "/stripe-webhook"
			}

			client := webhookendpoint.Client{B: stripe.GetBackend(stripe.APIBackend), Key: cfg.Stripe.SecretKey}
			params := &stripe.WebhookEndpointParams{
				URL:           stripe.String(endpoint),
				EnabledEvents: stripe.StringSlice(webhookEvents),
			}
			params.Context = cmd.Context()

			result, err := client.New(params)
			if err != nil {
				return fmt.Errorf("register webhook endpoint: %w", err)
			}

			utils.Info("webhook", "Registered endpoint", "url", endpoint, "endpoint_id", result.ID, "events", webhookEvents)
			fmt.Fprintf(cmd.OutOrStdout(), "endpoint: %s\nid: %s\nsigning secret: %s\n", endpoint, result.ID, result.Secret)
			return nil
		},
	}
	register.Flags().StringVar(&endpoint, "url", "", "Webhook URL (defaults to <http.publicUrl>/stripe-webhook)")

	cmd.AddCommand(register)
	return cmd
}

func newHashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Read a password from stdin and print its bcrypt hash for operator.passwordHash",
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read password: %w", err)
			}
			hash, err := services.HashOperatorPassword(strings.TrimRight(line, "\r\n"))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
