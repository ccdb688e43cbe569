// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package cli implements handoffctl, the operator tool of the gateway.
//
// It inspects the module catalog, computes grants and routing decisions for a
// user snapshot, and encodes or decodes handoff URLs offline. Nothing here
// talks to the identity endpoint.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/avelarcompany/gateway/internal/access"
	"github.com/avelarcompany/gateway/internal/handoff"
	"github.com/avelarcompany/gateway/internal/platform/config"
	"github.com/avelarcompany/gateway/internal/platform/constants"
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	format      string
	catalogPath string
	mode        string
	secret      string
	ticketTTL   string
}

// NewRootCommand builds the handoffctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "handoffctl",
		Short: "Inspect module catalogs, grants and handoff URLs",
		Long: `handoffctl is the operator tool of the Avelar portal gateway.

It works offline against the module catalog and a user snapshot (JSON as
returned by the identity endpoint), which makes it handy for answering
"why can't this user open that module?" and for debugging handoff links.

Examples:
  # List the catalog
  handoffctl catalog

  # Compute the grant of a user snapshot
  handoffctl grant --user user.json

  # Build the URL the portal would send a browser to
  handoffctl encode --user user.json --token abc --module StockTech

  # Decode the handoff parameter of a URL
  handoffctl decode 'https://stocktech.avelarcompany.com.br/?auth=...'
`,
		Version:       constants.AppVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.format, "format", "o", formatText, "output format: text, json or yaml")
	flags.StringVar(&opts.catalogPath, "catalog", os.Getenv("MODULE_CATALOG_PATH"), "module catalog file (default: embedded catalog)")
	flags.StringVar(&opts.mode, "mode", envOr("HANDOFF_MODE", config.HandoffLegacy), "handoff mode: legacy or signed")
	flags.StringVar(&opts.secret, "secret", os.Getenv("SESSION_SECRET"), "shared secret for signed tickets")
	flags.StringVar(&opts.ticketTTL, "ticket-ttl", envOr("HANDOFF_TICKET_TTL", "60s"), "signed ticket lifetime")

	root.AddCommand(
		newCatalogCommand(opts),
		newGrantCommand(opts),
		newRouteCommand(opts),
		newEncodeCommand(opts),
		newDecodeCommand(opts),
		newNoticeCommand(opts),
	)

	return root
}

// catalog loads the catalog selected by --catalog.
func (opts *options) catalog() (*access.Catalog, error) {
	return access.LoadCatalog(opts.catalogPath)
}

// codec builds the codec selected by --mode. Signed decoding keeps its replay
// memory for the lifetime of the process only.
func (opts *options) codec() (handoff.Codec, error) {
	if opts.mode == config.HandoffSigned && len(opts.secret) < 32 {
		return nil, fmt.Errorf("signed mode needs --secret of at least 32 bytes")
	}

	ttl, err := parseDuration(opts.ticketTTL)
	if err != nil {
		return nil, err
	}

	return handoff.NewCodec(handoff.Options{
		Mode:         opts.mode,
		Secret:       []byte(opts.secret),
		Issuer:       constants.AppName,
		TicketTTL:    ttl,
		AcceptLegacy: true,
	}, nil)
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
