package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"grabarr/internal/preferences"
)

func newPrefsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Inspect and update torrent selection preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newPrefsGetCommand(ctx))
	cmd.AddCommand(newPrefsSetCommand(ctx))
	return cmd
}

func newPrefsGetCommand(ctx *commandContext) *cobra.Command {
	var contentType string

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show preferences for a content type",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{"contentType": {contentType}}
			var prefs preferences.TorrentPreferences
			if err := ctx.client().get(cmd.Context(), "/api/preferences", query, &prefs); err != nil {
				return err
			}
			return writeJSON(cmd, prefs)
		},
	}
	cmd.Flags().StringVar(&contentType, "type", "movie", "Content type: movie, tv, or game")
	return cmd
}

func newPrefsSetCommand(ctx *commandContext) *cobra.Command {
	var contentType string

	cmd := &cobra.Command{
		Use:   "set key=value [key=value ...]",
		Short: "Apply a partial preference update",
		Long: `Apply a partial preference update. Scalar fields take plain values,
list fields take comma-separated values:

  grabarr prefs set min_seeders=5 auto_select_best=false
  grabarr prefs set preferred_qualities=HD_1080P,HD_720P`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			update, err := buildUpdatePayload(args)
			if err != nil {
				return err
			}
			query := url.Values{"contentType": {contentType}}
			var merged preferences.TorrentPreferences
			if err := ctx.client().put(cmd.Context(), "/api/preferences", query, update, &merged); err != nil {
				return err
			}
			return writeJSON(cmd, merged)
		},
	}
	cmd.Flags().StringVar(&contentType, "type", "movie", "Content type: movie, tv, or game")
	return cmd
}

var prefsListFields = map[string]bool{
	"preferred_qualities": true,
	"preferred_formats":   true,
	"trusted_indexers":    true,
	"blacklisted_words":   true,
}

// buildUpdatePayload turns key=value pairs into the JSON shape the daemon's
// merge endpoint expects, so type errors surface server-side with the same
// messages regardless of client.
func buildUpdatePayload(args []string) (map[string]json.RawMessage, error) {
	payload := make(map[string]json.RawMessage, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		key = strings.TrimSpace(key)

		var encoded []byte
		var err error
		switch {
		case prefsListFields[key]:
			items := []string{}
			for _, item := range strings.Split(value, ",") {
				if item = strings.TrimSpace(item); item != "" {
					items = append(items, item)
				}
			}
			encoded, err = json.Marshal(items)
		case value == "true" || value == "false":
			encoded = []byte(value)
		default:
			if _, numErr := strconv.ParseFloat(value, 64); numErr == nil {
				encoded = []byte(value)
			} else {
				encoded, err = json.Marshal(value)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		payload[key] = json.RawMessage(encoded)
	}
	return payload, nil
}
