// Package main is adminctl, the command-line admin console for survey orgs,
// users and site manifests.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fomomon/survey-admin/internal/console"
)

var (
	baseURL    string
	orgFlag    string
	bucketBase string
)

func main() {
	root := &cobra.Command{
		Use:           "adminctl",
		Short:         "Manage survey orgs, users and site manifests",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&baseURL, "base-url", "http://localhost:8000", "admin API base URL")
	root.PersistentFlags().StringVar(&orgFlag, "org", "", "org to operate on (default: first listed)")
	root.PersistentFlags().StringVar(&bucketBase, "bucket-base", "", "bucket URL base for synthesized manifests")

	root.AddCommand(
		newOrgsCmd(),
		newRefreshCmd(),
		newUsersCmd(),
		newPolicyCmd(),
		newSitesCmd(),
		newGhostCmd(),
		newAuthConfigCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "adminctl:", userMessage(err))
		os.Exit(1)
	}
}

// userMessage prefers the backend's detail field for request failures.
func userMessage(err error) string {
	var re *console.RequestError
	if errors.As(err, &re) {
		return re.Detail()
	}
	return err.Error()
}

// newClient builds the API client from the global flags.
func newClient() *console.Client { return console.New(baseURL) }

// openSession selects the org (flag value, or the backend's first org) and
// performs the initial refresh.
func openSession(ctx context.Context) (*console.Session, error) {
	s := console.NewSession(newClient())
	if orgFlag != "" {
		if err := s.SelectOrg(ctx, orgFlag); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err := s.RefreshAll(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// openEditor binds an editor to the session's org.
func openEditor(s *console.Session) (*console.Editor, error) {
	if s.Org() == "" {
		return nil, console.ErrNoOrg
	}
	e := console.NewEditor(newClient(), bucketBase)
	e.SetOrg(s.Org())
	return e, nil
}

// loadManifest loads the org's manifest, treating a missing manifest as a
// printed notice rather than a failure.
func loadManifest(ctx context.Context, e *console.Editor) error {
	err := e.Load(ctx)
	if errors.Is(err, console.ErrManifestMissing) {
		fmt.Fprintf(os.Stderr, "no sites.json found for %s; starting from an empty manifest\n", e.Org())
		return nil
	}
	return err
}

// manifestJSON renders the loaded manifest as indented JSON.
func manifestJSON(e *console.Editor) ([]byte, error) {
	return json.MarshalIndent(e.Manifest(), "", "  ")
}

// confirm asks a y/N question on the terminal.
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "y")
}

func newOrgsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "orgs",
		Short: "List known orgs",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := console.NewSession(newClient())
			orgs, err := s.ListOrgs(cmd.Context())
			if err != nil {
				return err
			}
			for _, org := range orgs {
				fmt.Println(org)
			}
			return nil
		},
	}
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Fetch orgs, users and the password policy in one pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("org: %s\n", s.Org())
			fmt.Printf("orgs: %d, org users: %d, pool users: %d\n",
				len(s.Orgs), len(s.OrgUsers), len(s.AllUsers))
			if rules := s.PolicyRules(); len(rules) > 0 {
				fmt.Printf("password rules: %s\n", strings.Join(rules, ", "))
			}
			return nil
		},
	}
}

func newPolicyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policy",
		Short: "Show the pool's password policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := console.NewSession(newClient())
			if _, err := s.PasswordPolicy(cmd.Context()); err != nil {
				return err
			}
			rules := s.PolicyRules()
			if len(rules) == 0 {
				fmt.Println("no displayable policy; the backend enforces its own")
				return nil
			}
			fmt.Println(strings.Join(rules, ", "))
			return nil
		},
	}
}

func newUsersCmd() *cobra.Command {
	users := &cobra.Command{Use: "users", Short: "Manage the user directory"}

	users.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the selected org's users",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			for _, row := range s.OrgUsers {
				status := "n/a"
				if row.Cognito != nil {
					status = row.Cognito.Status
					if !row.Cognito.Enabled {
						status += " (disabled)"
					}
				}
				fmt.Printf("%s\t%s\t%s\t%s\n", row.Profile.Username, row.Profile.Name, row.Profile.Email, status)
			}
			return nil
		},
	})

	users.AddCommand(&cobra.Command{
		Use:   "all",
		Short: "List every identity-backend account",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := console.NewSession(newClient())
			all, err := s.ListAllUsers(cmd.Context())
			if err != nil {
				return err
			}
			for _, u := range all {
				fmt.Printf("%s\t%s\t%s\n", u.Username, u.Email, u.Status)
			}
			return nil
		},
	})

	var name, email, password string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a user in the selected org, or update an existing user's password",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			created, err := s.CreateUser(cmd.Context(), name, email, password)
			if err != nil {
				return err
			}
			if created {
				fmt.Println("user created")
			} else {
				fmt.Println("user existed; password updated")
			}
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name (becomes the username, lowercased)")
	add.Flags().StringVar(&email, "email", "", "email address")
	add.Flags().StringVar(&password, "password", "", "password")
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("email")
	_ = add.MarkFlagRequired("password")
	users.AddCommand(add)

	var yes bool
	del := &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete a user from the selected org and the identity backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			if !yes && !confirm(fmt.Sprintf("Delete %s from %s?", args[0], s.Org())) {
				return nil
			}
			if err := s.DeleteUser(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted %s\n", args[0])
			return nil
		},
	}
	del.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	users.AddCommand(del)

	var newPassword string
	reset := &cobra.Command{
		Use:   "reset-password <username>",
		Short: "Set a new password for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.ResetPassword(cmd.Context(), args[0], newPassword); err != nil {
				return err
			}
			fmt.Printf("password updated for %s\n", args[0])
			return nil
		},
	}
	reset.Flags().StringVar(&newPassword, "password", "", "new password")
	_ = reset.MarkFlagRequired("password")
	users.AddCommand(reset)

	return users
}

func newSitesCmd() *cobra.Command {
	sites := &cobra.Command{Use: "sites", Short: "Manage the org's site manifest"}

	var out string
	pull := &cobra.Command{
		Use:   "pull",
		Short: "Fetch the manifest and write it to a file or stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			e, err := openEditor(s)
			if err != nil {
				return err
			}
			if err := loadManifest(cmd.Context(), e); err != nil {
				return err
			}
			body, err := manifestJSON(e)
			if err != nil {
				return err
			}
			if out == "" {
				fmt.Println(string(body))
				return nil
			}
			return os.WriteFile(out, body, 0o644)
		},
	}
	pull.Flags().StringVar(&out, "out", "", "write to file instead of stdout")
	sites.AddCommand(pull)

	sites.AddCommand(&cobra.Command{
		Use:   "push <file.json>",
		Short: "Replace the manifest from a local JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			e, err := openEditor(s)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			if err := e.UploadManifest(cmd.Context(), filepath.Base(args[0]), f); err != nil && !errors.Is(err, console.ErrManifestMissing) {
				return err
			}
			fmt.Printf("replaced manifest for %s (%d sites)\n", e.Org(), len(e.Manifest().Sites))
			return nil
		},
	})

	var siteID string
	addSite := &cobra.Command{
		Use:   "add-site",
		Short: "Append a new site and save",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			e, err := openEditor(s)
			if err != nil {
				return err
			}
			if err := loadManifest(cmd.Context(), e); err != nil {
				return err
			}
			i := e.AddSite()
			if siteID != "" {
				if err := e.SetSiteID(i, siteID); err != nil {
					return err
				}
			}
			if err := e.Save(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("added site %d\n", i)
			return nil
		},
	}
	addSite.Flags().StringVar(&siteID, "id", "", "site id")
	sites.AddCommand(addSite)

	sites.AddCommand(&cobra.Command{
		Use:   "set-survey <index> <json|@file>",
		Short: "Replace a site's survey JSON and save",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("index must be a number: %q", args[0])
			}
			text := args[1]
			if strings.HasPrefix(text, "@") {
				body, err := os.ReadFile(text[1:])
				if err != nil {
					return err
				}
				text = string(body)
			}
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			e, err := openEditor(s)
			if err != nil {
				return err
			}
			if err := loadManifest(cmd.Context(), e); err != nil {
				return err
			}
			if err := e.SetSurveyJSON(index, text); err != nil {
				return err
			}
			if err := e.Save(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("survey updated for site %d\n", index)
			return nil
		},
	})

	sites.AddCommand(&cobra.Command{
		Use:   "delete-site <index>",
		Short: "Delete the site at an index and save",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("index must be a number: %q", args[0])
			}
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			e, err := openEditor(s)
			if err != nil {
				return err
			}
			if err := loadManifest(cmd.Context(), e); err != nil {
				return err
			}
			if err := e.DeleteSite(index); err != nil {
				return err
			}
			if err := e.Save(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("deleted site %d\n", index)
			return nil
		},
	})

	return sites
}

func newGhostCmd() *cobra.Command {
	ghost := &cobra.Command{Use: "ghost", Short: "Manage ghost reference images"}

	var index int
	var orientation string
	var save bool
	upload := &cobra.Command{
		Use:   "upload <image>",
		Short: "Upload a reference image for a site",
		Long: "Uploads the image and stages the returned path on the site in memory.\n" +
			"Without --save the manifest is not written and the association is lost\n" +
			"on the next load.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			e, err := openEditor(s)
			if err != nil {
				return err
			}
			if err := loadManifest(cmd.Context(), e); err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			rel, err := e.UploadGhost(cmd.Context(), index, orientation, filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			fmt.Printf("uploaded: %s\n", rel)
			fmt.Printf("url: %s\n", console.ImageURL(e.Manifest().BucketRoot, rel))
			if !save {
				fmt.Println("not saved: run again with --save, or save the manifest to persist the path")
				return nil
			}
			if err := e.Save(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("manifest saved")
			return nil
		},
	}
	upload.Flags().IntVar(&index, "site", 0, "site index in the manifest")
	upload.Flags().StringVar(&orientation, "orientation", console.OrientationPortrait, "portrait or landscape")
	upload.Flags().BoolVar(&save, "save", false, "save the manifest after staging the upload")
	ghost.AddCommand(upload)

	return ghost
}

func newAuthConfigCmd() *cobra.Command {
	authCfg := &cobra.Command{Use: "auth-config", Short: "Manage the mobile auth bootstrap artifact"}
	authCfg.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Regenerate auth_config.json from the identity stack",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := console.NewSession(newClient())
			cfg, err := s.SyncAuthConfig(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("synced auth_config.json (pool %s, client %s)\n", cfg.UserPoolID, cfg.ClientID)
			return nil
		},
	})
	return authCfg
}
