// Command blobvault is the administrative CLI for a blobvault store: it
// stores and fetches content, validates stored blobs, and manages the
// censored-content registry.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	blobvault "github.com/havenfs/blobvault"
	"github.com/havenfs/blobvault/pkg/identity"
	"github.com/havenfs/blobvault/pkg/redaction"
)

var (
	flagPath        string
	flagRedactionDB string
	flagRepoID      int32
	flagVerbose     bool
)

func main() {
	root := &cobra.Command{
		Use:          "blobvault",
		Short:        "Content-addressed blob store administration",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flagPath, "path", "blobvault-data", "storage directory")
	root.PersistentFlags().StringVar(&flagRedactionDB, "redaction-db", "", "redaction registry database (default <path>/redaction.db)")
	root.PersistentFlags().Int32Var(&flagRepoID, "repo-id", 0, "repository id for key namespacing")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	root.AddCommand(storeCmd(), fetchCmd(), validateCmd(), listCmd(), censoredCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func openVault() (*blobvault.Vault, error) {
	logger := logrus.New()
	if flagVerbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return blobvault.Init(&blobvault.Config{
		Path:            flagPath,
		RedactionDBPath: flagRedactionDB,
		RepoID:          flagRepoID,
		Logger:          logger,
	})
}

// parseFetchKey accepts either a bare canonical hex digest or an aliased key
// of the form <kind>:<hex> with kind in {sha1, sha256, gitsha1}.
func parseFetchKey(s string) (identity.FetchKey, error) {
	if kind, digest, ok := strings.Cut(s, ":"); ok {
		aliasKind, err := identity.ParseAliasKind(kind)
		if err != nil {
			return identity.FetchKey{}, err
		}
		raw, err := hex.DecodeString(digest)
		if err != nil {
			return identity.FetchKey{}, fmt.Errorf("invalid %s digest %q: %w", kind, digest, err)
		}
		alias, err := identity.NewAlias(aliasKind, raw)
		if err != nil {
			return identity.FetchKey{}, err
		}
		return identity.Aliased(alias), nil
	}

	id, err := identity.ParseContentId(s)
	if err != nil {
		return identity.FetchKey{}, err
	}
	return identity.Canonical(id), nil
}

func storeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "store <file>",
		Short: "Store a file and print its content identities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			vault, err := openVault()
			if err != nil {
				return err
			}
			defer vault.Close()

			result, err := vault.StoreContent(cmd.Context(), content)
			if err != nil {
				return err
			}

			fmt.Printf("content-id: %s\n", result.Id)
			for _, alias := range result.Digests.Aliases() {
				fmt.Printf("%s\n", alias)
			}
			fmt.Printf("size: %d bytes, chunks: %d\n", result.Size, result.NumChunks)
			return nil
		},
	}
}

func fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <key>",
		Short: "Fetch content by canonical id or alias (<kind>:<hex>) to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseFetchKey(args[0])
			if err != nil {
				return err
			}

			vault, err := openVault()
			if err != nil {
				return err
			}
			defer vault.Close()

			content, err := vault.FetchContent(cmd.Context(), key)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(content)
			return err
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Verify that all stored content still matches its hashes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			vault, err := openVault()
			if err != nil {
				return err
			}
			defer vault.Close()

			results, err := vault.ValidateAll(cmd.Context())
			if err != nil {
				return err
			}

			failed := 0
			for _, res := range results {
				if !res.Passed() {
					failed++
					fmt.Fprintf(os.Stderr, "FAIL %s: %v\n", res.Id, res.Err)
				}
			}
			fmt.Printf("validated %d blobs, %d failed\n", len(results), failed)
			if failed > 0 {
				return fmt.Errorf("%d blobs failed validation", failed)
			}
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored content blobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			vault, err := openVault()
			if err != nil {
				return err
			}
			defer vault.Close()

			infos, err := vault.ListContent()
			if err != nil {
				return err
			}
			for _, info := range infos {
				kind := "bytes"
				if info.Chunked {
					kind = fmt.Sprintf("chunked(%d)", info.NumChunks)
				}
				fmt.Printf("%s  %s  %d bytes (%d stored)\n", info.Id, kind, info.TotalSize, info.StoredSize)
			}
			return nil
		},
	}
}

func openRegistry() (*redaction.Store, error) {
	path := flagRedactionDB
	if path == "" {
		if err := os.MkdirAll(flagPath, 0o755); err != nil {
			return nil, err
		}
		path = flagPath + "/redaction.db"
	}
	return redaction.OpenStore(path)
}

func censoredCmd() *cobra.Command {
	censored := &cobra.Command{
		Use:   "censored",
		Short: "Manage the censored-content registry",
	}

	censored.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all censored content keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := openRegistry()
			if err != nil {
				return err
			}
			defer registry.Close()

			entries, err := registry.GetAllCensoredBlobs(cmd.Context())
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%s\t%s\t%s\n", e.ContentKey, e.Task, time.Unix(e.AddTimestamp, 0).UTC().Format(time.RFC3339))
			}
			return nil
		},
	})

	var task string
	insert := &cobra.Command{
		Use:   "insert <content-key>...",
		Short: "Censor content keys under a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if task == "" {
				return fmt.Errorf("--task is required")
			}
			registry, err := openRegistry()
			if err != nil {
				return err
			}
			defer registry.Close()
			return registry.InsertCensoredBlobs(cmd.Context(), args, task, time.Now().Unix())
		},
	}
	insert.Flags().StringVar(&task, "task", "", "task name recorded with the redaction")
	censored.AddCommand(insert)

	censored.AddCommand(&cobra.Command{
		Use:   "delete <content-key>...",
		Short: "Lift redaction from content keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := openRegistry()
			if err != nil {
				return err
			}
			defer registry.Close()
			return registry.DeleteCensoredBlobs(cmd.Context(), args)
		},
	})

	return censored
}
