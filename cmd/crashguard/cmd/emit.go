package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hugo-lorenzo-mato/crashguard/internal/config"
	"github.com/hugo-lorenzo-mato/crashguard/internal/trace"
)

var emitCmd = &cobra.Command{
	Use:   "emit",
	Short: "Send one callback record to a running subsystem",
	Long: `Act as a callback producer: fetch the registration from a running
'crashguard run', encode one record with its filters and lightweight mode,
and post it to the ingest endpoint.`,
	RunE: runEmit,
}

var (
	emitName    string
	emitProfile string
	emitStack   string
	emitAddr    string
)

func init() {
	rootCmd.AddCommand(emitCmd)
	emitCmd.Flags().StringVar(&emitName, "name", "", "callback name")
	emitCmd.Flags().StringVar(&emitProfile, "profile", "", "profiling info")
	emitCmd.Flags().StringVar(&emitStack, "stack", "", "caller stack")
	emitCmd.Flags().StringVar(&emitAddr, "addr", "", "subsystem address (default from config)")
	_ = emitCmd.MarkFlagRequired("name")
}

func runEmit(cmd *cobra.Command, _ []string) error {
	addr := emitAddr
	if addr == "" {
		addr = viper.GetString("api.addr")
	}
	if addr == "" {
		addr = config.DefaultAPIAddr
	}
	base := "http://" + addr

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	reg, err := fetchRegistration(ctx, base)
	if err != nil {
		return err
	}

	raw, ok := trace.NewProducer(reg).Record(emitName, emitProfile, emitStack)
	if !ok {
		fmt.Fprintf(cmd.OutOrStdout(), "filtered: %s\n", emitName)
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/v1/callbacks", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending record: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted:
		fmt.Fprintf(cmd.OutOrStdout(), "stored: %s\n", emitName)
	case http.StatusNoContent:
		fmt.Fprintf(cmd.OutOrStdout(), "dropped: %s\n", emitName)
	default:
		return fmt.Errorf("ingest returned %s", resp.Status)
	}
	return nil
}

func fetchRegistration(ctx context.Context, base string) (config.Registration, error) {
	var reg config.Registration

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/v1/registration", nil)
	if err != nil {
		return reg, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return reg, fmt.Errorf("fetching registration: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return reg, fmt.Errorf("registration returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&reg); err != nil {
		return reg, fmt.Errorf("decoding registration: %w", err)
	}
	return reg, nil
}
