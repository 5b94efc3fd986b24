package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/testserver/pkg/client"
	"github.com/shashiranjanraj/testserver/pkg/runner"
)

var (
	pingURL     string
	pingRetries int
)

// testserver ping: check a running server answers /health.
var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that a running server answers /health",
	RunE: func(cmd *cobra.Command, args []string) error {
		url := pingURL
		if url == "" {
			url = runner.Resolve(runner.Options{}).ServerURL
		}

		resp, err := client.New(url).Get("/health").
			Retry(pingRetries, 200*time.Millisecond).
			Send(cmd.Context())
		if err != nil {
			return err
		}
		if err := resp.Throw(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s ok\n", url)
		return nil
	},
}

func init() {
	pingCmd.Flags().StringVar(&pingURL, "url", "", "server URL (default http://localhost:30001/1)")
	pingCmd.Flags().IntVar(&pingRetries, "retries", 1, "total attempts")
}
