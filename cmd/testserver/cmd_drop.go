package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/testserver/config"
	"github.com/shashiranjanraj/testserver/pkg/docstore"
)

var dropURI string

// testserver drop: drop a database without starting a server.
var dropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Connect to MongoDB and drop the test database",
	RunE: func(cmd *cobra.Command, args []string) error {
		uri := dropURI
		if uri == "" {
			uri = fmt.Sprintf("mongodb://localhost:%s/%s", config.MongoPort(), docstore.DefaultDatabase)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), config.Timeout())
		defer cancel()

		conn, err := docstore.Connector{}.Connect(ctx, uri)
		if err != nil {
			return err
		}
		defer conn.Disconnect(context.Background()) //nolint:errcheck

		if err := conn.DropDatabase(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "dropped %s\n", conn.Database().Name())
		return nil
	},
}

func init() {
	dropCmd.Flags().StringVar(&dropURI, "database-uri", "", "MongoDB connection string (default built from MONGODB_PORT)")
}
