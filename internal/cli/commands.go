// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cli

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/avelarcompany/gateway/internal/access"
	"github.com/avelarcompany/gateway/internal/identity"
	"github.com/avelarcompany/gateway/internal/platform/constants"
	"github.com/avelarcompany/gateway/internal/platform/sec"
	"github.com/avelarcompany/gateway/pkg/document"
	"github.com/avelarcompany/gateway/pkg/slice"
)

// # catalog

func newCatalogCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the modules of the catalog in chooser order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := opts.catalog()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if done, err := render(out, opts.format, catalog.All()); done {
				return err
			}

			writer := table(out)
			fmt.Fprintln(writer, "ID\tNAME\tSCOPE\tURL\tCLIENT TYPES\tROLES")
			for _, module := range catalog.All() {
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\n",
					module.ID, module.Name, module.Scope, module.URL,
					orDash(joinClientTypes(module.ClientTypes)), orDash(joinRoles(module.Roles)))
			}
			return writer.Flush()
		},
	}
}

// # grant

// grantLine explains the outcome of one catalog module for a user.
type grantLine struct {
	Module  string `json:"module" yaml:"module"`
	Granted bool   `json:"granted" yaml:"granted"`
	Reason  string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

func newGrantCommand(opts *options) *cobra.Command {
	var userPath string

	command := &cobra.Command{
		Use:   "grant",
		Short: "Explain which modules a user snapshot may open",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := opts.catalog()
			if err != nil {
				return err
			}
			user, err := readUser(cmd.InOrStdin(), userPath)
			if err != nil {
				return err
			}

			lines := explainGrant(user, catalog)

			out := cmd.OutOrStdout()
			if done, err := render(out, opts.format, lines); done {
				return err
			}

			fmt.Fprintf(out, "%s  %s  %s  %s\n\n", user.ID, user.FullName, document.Format(user.Document), user.Role)
			writer := table(out)
			fmt.Fprintln(writer, "MODULE\tGRANTED\tREASON")
			for _, line := range lines {
				fmt.Fprintf(writer, "%s\t%t\t%s\n", line.Module, line.Granted, orDash(line.Reason))
			}
			return writer.Flush()
		},
	}

	command.Flags().StringVarP(&userPath, "user", "u", "", "user snapshot JSON file, or - for stdin")
	return command
}

func explainGrant(user *identity.User, catalog *access.Catalog) []grantLine {
	return slice.Map(catalog.All(), func(module access.Module) grantLine {
		line := grantLine{Module: module.ID, Granted: access.Granted(user, catalog, module.ID)}
		switch {
		case line.Granted && user.Role.IsSuperAdmin():
			line.Reason = "super_admin"
		case line.Granted:
		case !slices.Contains(user.EnabledModules, module.ID):
			line.Reason = "not in enabled_modules"
		default:
			line.Reason = fmt.Sprintf("scope %s does not match the account", module.Scope)
		}
		return line
	})
}

// # route

func newRouteCommand(opts *options) *cobra.Command {
	var (
		userPath  string
		token     string
		appModule string
		support   string
	)

	command := &cobra.Command{
		Use:   "route",
		Short: "Show the navigation the portal would choose after sign-in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := opts.catalog()
			if err != nil {
				return err
			}
			codec, err := opts.codec()
			if err != nil {
				return err
			}
			user, err := readUser(cmd.InOrStdin(), userPath)
			if err != nil {
				return err
			}

			router := access.NewRouter(catalog, codec, nil, access.RouterOptions{AppModule: appModule, SupportContact: support})
			decision, err := router.Decide(cmd.Context(), &identity.Session{Token: token, User: *user})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if done, err := render(out, opts.format, decision); done {
				return err
			}

			fmt.Fprintf(out, "kind: %s\n", decision.Kind)
			switch decision.Kind {
			case access.KindRedirect:
				fmt.Fprintf(out, "target: %s\n", decision.Target.URL)
			case access.KindChooser:
				for _, module := range decision.Modules {
					fmt.Fprintf(out, "  - %s\t%s\n", module.ID, module.URL)
				}
			case access.KindNoAccess:
				fmt.Fprintf(out, "support: %s\n", orDash(decision.Support))
			}
			return nil
		},
	}

	flags := command.Flags()
	flags.StringVarP(&userPath, "user", "u", "", "user snapshot JSON file, or - for stdin")
	flags.StringVar(&token, "token", "preview-token", "token embedded in handoff URLs")
	flags.StringVar(&appModule, "app-module", "", "module served by the portal origin")
	flags.StringVar(&support, "support", "", "support contact shown on no_access")
	return command
}

// # encode

func newEncodeCommand(opts *options) *cobra.Command {
	var (
		userPath string
		token    string
		moduleID string
		base     string
	)

	command := &cobra.Command{
		Use:   "encode",
		Short: "Build the handoff URL for a module",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if token == "" {
				return fmt.Errorf("--token is required")
			}
			codec, err := opts.codec()
			if err != nil {
				return err
			}
			user, err := readUser(cmd.InOrStdin(), userPath)
			if err != nil {
				return err
			}

			if base == "" {
				catalog, err := opts.catalog()
				if err != nil {
					return err
				}
				module, ok := catalog.Get(moduleID)
				if !ok {
					return fmt.Errorf("unknown module %q", moduleID)
				}
				base = module.URL
			}

			encoded, err := codec.Encode(cmd.Context(), base, &identity.Session{Token: token, User: *user}, moduleID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if done, err := render(out, opts.format, map[string]string{"url": encoded}); done {
				return err
			}
			fmt.Fprintln(out, encoded)
			return nil
		},
	}

	flags := command.Flags()
	flags.StringVarP(&userPath, "user", "u", "", "user snapshot JSON file, or - for stdin")
	flags.StringVar(&token, "token", "", "session token to hand off")
	flags.StringVarP(&moduleID, "module", "m", "", "target module id (also the ticket audience)")
	flags.StringVar(&base, "base", "", "target URL (default: the module URL from the catalog)")
	return command
}

// # decode

type decoded struct {
	Present     bool           `json:"present" yaml:"present"`
	Fingerprint string         `json:"token_fingerprint,omitempty" yaml:"token_fingerprint,omitempty"`
	Token       string         `json:"token,omitempty" yaml:"token,omitempty"`
	User        *identity.User `json:"user,omitempty" yaml:"user,omitempty"`
	Stripped    string         `json:"stripped_url" yaml:"stripped_url"`
}

func newDecodeCommand(opts *options) *cobra.Command {
	var (
		audience string
		reveal   bool
	)

	command := &cobra.Command{
		Use:   "decode <url>",
		Short: "Decode the handoff parameter of a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := url.Parse(args[0])
			if err != nil {
				return fmt.Errorf("parse url: %w", err)
			}
			codec, err := opts.codec()
			if err != nil {
				return err
			}

			session, err := codec.Decode(cmd.Context(), target.Query(), audience)
			if err != nil {
				return err
			}

			result := decoded{Present: session != nil, Stripped: stripURL(target)}
			if session != nil {
				result.Fingerprint = sec.Fingerprint(session.Token)
				if reveal {
					result.Token = session.Token
				}
				if session.User.ID != "" {
					result.User = &session.User
				}
			}

			out := cmd.OutOrStdout()
			if done, err := render(out, opts.format, result); done {
				return err
			}

			if !result.Present {
				fmt.Fprintln(out, "no handoff parameter")
				return nil
			}
			token := result.Fingerprint
			if result.Token != "" {
				token = result.Token + " (" + result.Fingerprint + ")"
			}
			fmt.Fprintf(out, "token:    %s\n", token)
			if result.User != nil {
				fmt.Fprintf(out, "user:     %s (%s)\n", result.User.ID, result.User.FullName)
				fmt.Fprintf(out, "role:     %s\n", result.User.Role)
				fmt.Fprintf(out, "modules:  %s\n", strings.Join(result.User.EnabledModules, ", "))
			} else {
				fmt.Fprintln(out, "user:     - (bare token, hydrated on arrival)")
			}
			fmt.Fprintf(out, "landing:  %s\n", result.Stripped)
			return nil
		},
	}

	flags := command.Flags()
	flags.StringVarP(&audience, "audience", "a", "", "expected module id for signed tickets")
	flags.BoolVar(&reveal, "reveal", false, "print the token itself instead of only its fingerprint")
	return command
}

// # notice

var noticeCodes = []string{
	constants.CodeModuleNotEnabled,
	constants.CodeAccessDenied,
	constants.CodeSessionExpired,
	constants.CodeInsufficientPermission,
}

func newNoticeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "notice [code]",
		Short: "Print the login page sentence of a redirect code",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codes := noticeCodes
			if len(args) == 1 {
				if _, ok := access.Notice(args[0]); !ok {
					return fmt.Errorf("unknown code %q", args[0])
				}
				codes = args
			}

			notices := make(map[string]string, len(codes))
			for _, code := range codes {
				notices[code], _ = access.Notice(code)
			}

			out := cmd.OutOrStdout()
			if done, err := render(out, opts.format, notices); done {
				return err
			}

			writer := table(out)
			for _, code := range codes {
				fmt.Fprintf(writer, "%s\t%s\n", code, notices[code])
			}
			return writer.Flush()
		},
	}
}

// # Helpers

func stripURL(target *url.URL) string {
	stripped := *target
	query := stripped.Query()
	query.Del(constants.ParamAuth)
	query.Del(constants.ParamToken)
	query.Del(constants.ParamUser)
	stripped.RawQuery = query.Encode()
	return stripped.String()
}

func joinClientTypes(types []identity.ClientType) string {
	return strings.Join(slice.Map(types, func(t identity.ClientType) string { return string(t) }), ",")
}

func joinRoles(roles []sec.Role) string {
	return strings.Join(slice.Map(roles, func(r sec.Role) string { return string(r) }), ",")
}
