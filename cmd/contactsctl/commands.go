package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mycelian/contacts-service/internal/config"
	"github.com/mycelian/contacts-service/internal/logger"
	"github.com/mycelian/contacts-service/internal/model"
	"github.com/mycelian/contacts-service/internal/remote"
	"github.com/mycelian/contacts-service/internal/schema"
)

// store is the subset of the remote client the commands use.
type store interface {
	FetchAll(ctx context.Context, pageSize int) ([]model.Contact, error)
	FetchOne(ctx context.Context, id string) (model.Contact, bool, error)
	Archive(ctx context.Context, id string) error
	Schema(ctx context.Context) (*schema.Bag, error)
}

func newStore() (store, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	mapper := schema.Default()
	if cfg.SchemaFile != "" {
		tables, err := schema.LoadTables(cfg.SchemaFile)
		if err != nil {
			return nil, err
		}
		if mapper, err = schema.NewMapper(tables); err != nil {
			return nil, err
		}
	}
	log := logger.NewWithWriter(os.Stderr, "contactsctl", zerolog.WarnLevel)
	client, err := remote.New(cfg.RemoteConfig(), mapper,
		remote.WithLogger(log),
		remote.WithDebugLogging(cfg.DebugHTTP),
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func newListCmd() *cobra.Command {
	var (
		status  string
		asJSON  bool
		perPage int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every contact in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newStore()
			if err != nil {
				return err
			}
			return runList(cmd.Context(), s, status, perPage, asJSON, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", "only contacts with this status")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	cmd.Flags().IntVar(&perPage, "page-size", remote.MaxPageSize, "records per remote page")
	return cmd
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print one contact as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newStore()
			if err != nil {
				return err
			}
			return runGet(cmd.Context(), s, args[0], cmd.OutOrStdout())
		},
	}
}

func newArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <id>",
		Short: "Archive a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newStore()
			if err != nil {
				return err
			}
			return runArchive(cmd.Context(), s, args[0], cmd.OutOrStdout())
		},
	}
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the database property definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newStore()
			if err != nil {
				return err
			}
			return runSchema(cmd.Context(), s, cmd.OutOrStdout())
		},
	}
}

func runList(ctx context.Context, s store, status string, pageSize int, asJSON bool, out io.Writer) error {
	contacts, err := s.FetchAll(ctx, pageSize)
	if err != nil {
		return err
	}
	filtered := contacts[:0]
	for _, c := range contacts {
		if status == "" || c.Status == status {
			filtered = append(filtered, c)
		}
	}
	if asJSON {
		return writeJSON(out, filtered)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tCOMPANY\tEMAIL")
	for _, c := range filtered {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Status, c.Company, c.Email)
	}
	return tw.Flush()
}

func runGet(ctx context.Context, s store, id string, out io.Writer) error {
	c, found, err := s.FetchOne(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("contact %s: %w", id, model.ErrNotFound)
	}
	return writeJSON(out, c)
}

func runArchive(ctx context.Context, s store, id string, out io.Writer) error {
	if err := s.Archive(ctx, id); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "archived %s\n", id)
	return err
}

func runSchema(ctx context.Context, s store, out io.Writer) error {
	props, err := s.Schema(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROPERTY\tTYPE")
	for _, k := range props.Keys() {
		p, _ := props.Get(k)
		fmt.Fprintf(tw, "%s\t%s\n", k, p.Type)
	}
	return tw.Flush()
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
