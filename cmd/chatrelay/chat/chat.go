// Package chatcmder provides the chat command for an interactive session with
// the Coze bot through a running chat relay.
package chatcmder

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/pkg/chat"
	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/dotdir"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/utils"
)

const (
	chatPath = "/api/coze-chat"

	cmdExit  = "/exit"
	cmdClear = "/clear"
)

type chatCommander struct {
	proxyTarget string
	configDir   string
	clear       bool
	debug       bool

	in         io.Reader
	out        io.Writer
	httpClient *http.Client
	history    *dotdir.History
	ddm        *dotdir.Manager
	logger     *slog.Logger
}

const chatLongDesc string = `Start an interactive chat session through the chat relay.

Each line you type is sent to POST /api/coze-chat on the relay and the bot's
final reply is printed. Replies are rendered as markdown when the output is a
terminal.

The transcript of the session is kept in .chatrelay/history.json and shown
again when the next session starts. Type /clear (or pass --clear) to forget
it and /exit or Ctrl+D to quit.

Examples:
  chatrelay chat
  chatrelay chat --proxy-target http://localhost:3000`

const chatShortDesc string = "Interactive chat through the chat relay"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagProxyTarget})
			cmder.proxyTarget = v.GetString("client.proxy_target")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagProxyTarget, &cmder.proxyTarget)
	cmd.Flags().BoolVar(&cmder.clear, "clear", false, "Forget the saved transcript before starting")

	return cmd
}

func (c *chatCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger = logger.New(logger.WithDebug(c.debug), logger.WithPretty(true), logger.WithWriter(os.Stderr))
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			// Tool-calling bots can take minutes to answer.
			Timeout: 5 * time.Minute,
		}
	}

	c.ddm = dotdir.NewManager()
	if c.clear {
		if err := c.ddm.ClearHistory(c.configDir); err != nil {
			return err
		}
	}

	history, err := c.ddm.LoadHistory(c.configDir)
	if err != nil {
		c.logger.Warn("ignoring unreadable chat history", "error", err)
		history = &dotdir.History{}
	}
	c.history = history

	c.printBanner()

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprintf(c.out, "%s ", cliui.UserPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case cmdExit:
			fmt.Fprintln(c.out)
			return nil
		case cmdClear:
			c.history = &dotdir.History{}
			msg := cliui.DimStyle.Render("Transcript cleared")
			err := c.ddm.ClearHistory(c.configDir)
			if err != nil {
				msg = err.Error()
			}
			fmt.Fprintf(c.out, "  %s %s\n\n", cliui.Mark(err), msg)
			continue
		}

		c.exchange(ctx, input)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

// exchange sends one message and prints the reply or the error.
func (c *chatCommander) exchange(ctx context.Context, input string) {
	var reply string
	send := func() error {
		var err error
		reply, err = c.send(ctx, input)
		return err
	}

	var err error
	if cliui.IsTerminal(c.out) {
		err = cliui.Step(c.out, cliui.DimStyle.Render("waiting for the bot"), send)
	} else {
		err = send()
	}
	if err != nil {
		fmt.Fprintf(c.out, "  %s %v\n\n", cliui.FailMark, err)
		return
	}

	now := time.Now().UTC()
	c.history.Append("user", input, now)
	c.history.Append("assistant", reply, now)
	if err := c.ddm.SaveHistory(c.history, c.configDir); err != nil {
		c.logger.Warn("could not save chat history", "error", err)
	}

	fmt.Fprintf(c.out, "%s\n%s\n", cliui.BotLabel, c.render(reply))
}

// send posts message to the relay and returns its reply.
func (c *chatCommander) send(ctx context.Context, message string) (string, error) {
	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := strings.TrimRight(c.proxyTarget, "/") + chatPath
	c.logger.Debug("sending chat message",
		"url", url,
		"message_preview", utils.Truncate(message, 60),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request to relay: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading relay response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp chat.ErrorResponse
		if json.Unmarshal(raw, &errResp) == nil && errResp.Error != "" {
			return "", fmt.Errorf("relay returned %d: %s", resp.StatusCode, errResp.Error)
		}
		return "", fmt.Errorf("relay returned %d: %s", resp.StatusCode, utils.Truncate(string(raw), 200))
	}

	var out struct {
		Reply *string `json:"reply"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("parsing relay response: %w", err)
	}
	if out.Reply == nil {
		return "", errors.New("relay response has no reply")
	}

	return *out.Reply, nil
}

func (c *chatCommander) render(reply string) string {
	if !cliui.IsTerminal(c.out) {
		return reply
	}

	rendered, err := cliui.RenderMarkdown(reply, cliui.TerminalWidth(c.out, 80))
	if err != nil {
		c.logger.Debug("markdown rendering failed", "error", err)
		return reply
	}
	return rendered
}

func (c *chatCommander) printBanner() {
	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "  %s %s\n",
		cliui.KeyStyle.Render("Relay:"),
		cliui.ValueStyle.Render(c.proxyTarget),
	)

	if n := len(c.history.Turns); n > 0 {
		fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render(fmt.Sprintf("Previous session (%d messages):", n)))
		for _, turn := range c.history.Turns {
			label := cliui.UserPrompt
			if turn.Role == "assistant" {
				label = cliui.BotLabel
			}
			fmt.Fprintf(c.out, "  %s %s\n", label, utils.Truncate(turn.Content, 200))
		}
	}

	fmt.Fprintf(c.out, "\n  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /clear to reset, /exit or Ctrl+D to quit."))
}
