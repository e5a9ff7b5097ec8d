// Package statuscmder provides the status command for summarizing what a
// running chatrelay API server has recorded.
package statuscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/api"
	"github.com/papercomputeco/chatrelay/pkg/chat"
	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/utils"
)

const statusLongDesc string = `Show what the chatrelay API server has recorded.

Queries the API server for exchange totals, failures and which extraction
rule produced each reply, followed by the most recent exchanges.

Examples:
  chatrelay status
  chatrelay status --recent 20
  chatrelay status --api-target http://localhost:3001`

const statusShortDesc string = "Show recorded exchange statistics"

type statusCommander struct {
	apiTarget string
	recent    uint

	httpClient *http.Client
}

func NewStatusCmd() *cobra.Command {
	cmder := &statusCommander{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagAPITarget})
			cmder.apiTarget = v.GetString("client.api_target")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)
	cmd.Flags().UintVarP(&cmder.recent, "recent", "n", 5, "Number of recent exchanges to show")

	return cmd
}

func (s *statusCommander) run(ctx context.Context, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.httpClient == nil {
		s.httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	var stats storage.Stats
	if err := s.get(ctx, "/stats", nil, &stats); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n  %s  %s\n", cliui.KeyStyle.Render("API server:"), cliui.ValueStyle.Render(s.apiTarget))
	fmt.Fprintf(w, "  %s  %s\n", cliui.KeyStyle.Render("Exchanges: "), cliui.ValueStyle.Render(strconv.Itoa(stats.Total)))
	fmt.Fprintf(w, "  %s  %s\n", cliui.KeyStyle.Render("Failed:    "), cliui.ValueStyle.Render(strconv.Itoa(stats.Failed)))

	if len(stats.BySource) > 0 {
		sources := make([]string, 0, len(stats.BySource))
		for source := range stats.BySource {
			sources = append(sources, source)
		}
		sort.Strings(sources)

		fmt.Fprintf(w, "  %s\n", cliui.KeyStyle.Render("By source:"))
		for _, source := range sources {
			fmt.Fprintf(w, "    %s %d\n", cliui.DimStyle.Render(source+":"), stats.BySource[source])
		}
	}
	fmt.Fprintln(w)

	if s.recent == 0 || stats.Total == 0 {
		return nil
	}

	var page api.ListResponse
	query := url.Values{"limit": {strconv.FormatUint(uint64(s.recent), 10)}}
	if err := s.get(ctx, "/exchanges", query, &page); err != nil {
		return err
	}

	for i, ex := range page.Exchanges {
		outcome := cliui.SuccessMark
		preview := ex.Reply
		if ex.Failed() {
			outcome = cliui.FailMark
			preview = ex.Error
		}

		fmt.Fprintf(w, "  %s %s %s %s %s\n",
			cliui.DimStyle.Render(fmt.Sprintf("%d.", i+1)),
			outcome,
			cliui.DimStyle.Render(ex.CreatedAt.Local().Format(time.DateTime)),
			utils.Truncate(ex.Message, 60),
			cliui.StepStyle.Render(fmt.Sprintf("(%s)", cliui.FormatDuration(time.Duration(ex.DurationMs)*time.Millisecond))),
		)
		if preview != "" {
			fmt.Fprintf(w, "     %s\n", cliui.DimStyle.Render(utils.Truncate(preview, 72)))
		}
	}
	fmt.Fprintln(w)

	return nil
}

func (s *statusCommander) get(ctx context.Context, path string, query url.Values, out any) error {
	target := strings.TrimRight(s.apiTarget, "/") + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("querying API server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp chat.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("API server returned %d: %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("API server returned %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
