package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/devghori1264/prodmon/internal/events"
	"github.com/devghori1264/prodmon/internal/logging"
	natsclient "github.com/devghori1264/prodmon/internal/nats"
	"github.com/devghori1264/prodmon/internal/server"
	"github.com/devghori1264/prodmon/internal/shiftclock"
)

type cli struct {
	httpBase string
	grpcAddr string
	natsURL  string
	subject  string
	token    string
	verbose  bool

	log *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "prodctl",
		Short:         "prodctl talks to a running prodmon server",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := "warn"
			if c.verbose {
				level = "debug"
			}
			log, err := logging.New(logging.Options{Level: level})
			if err != nil {
				return err
			}
			c.log = log
			return nil
		},
	}
	f := root.PersistentFlags()
	f.StringVar(&c.httpBase, "http", envOr("PRODCTL_HTTP", "http://localhost:8080"), "prodmon HTTP base URL")
	f.StringVar(&c.grpcAddr, "grpc", envOr("PRODCTL_GRPC", "localhost:50051"), "prodmon gRPC address")
	f.StringVar(&c.natsURL, "nats", envOr("PRODCTL_NATS", nats.DefaultURL), "NATS server URL")
	f.StringVar(&c.subject, "subject-root", "prodmon", "event subject root")
	f.StringVar(&c.token, "token", os.Getenv("PRODCTL_TOKEN"), "session token from `prodctl login`")
	f.BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		c.pingCmd(),
		c.loginCmd(),
		c.getCmd("leader", "/leader", "Show the leader dashboard"),
		c.getCmd("engineering", "/engineering", "Show active repair tickets"),
		c.getCmd("history", "/leader/history", "Show archived shifts"),
		c.getCmd("admin", "/admin", "Show the admin summary"),
		c.requestCmd(),
		c.advanceCmd(),
		c.statusCmd(),
		c.watchCmd(),
	)
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (c *cli) pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check the HTTP and gRPC endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.call(cmd.Context(), http.MethodGet, "/ping", nil, cmd.OutOrStdout()); err != nil {
				return err
			}
			cl, err := server.Dial(c.grpcAddr)
			if err != nil {
				return err
			}
			defer cl.Close()
			ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
			defer cancel()
			msg, err := cl.Ping(ctx)
			if err != nil {
				return fmt.Errorf("grpc ping: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

func (c *cli) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print a session token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			body := map[string]string{"email": email, "password": password}
			var buf bytes.Buffer
			if err := c.call(cmd.Context(), http.MethodPost, "/login", body, &buf); err != nil {
				return err
			}
			var out struct {
				Token    string `json:"token"`
				Redirect string `json:"redirect"`
			}
			if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "export PRODCTL_TOKEN=%s\n# home: %s\n", out.Token, out.Redirect)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *cli) getCmd(use, path, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.call(cmd.Context(), http.MethodGet, path, nil, cmd.OutOrStdout())
		},
	}
}

func (c *cli) requestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "request MACHINE_ID",
		Short: "Request repair for a Down machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("machine id must be a number: %w", err)
			}
			return c.call(cmd.Context(), http.MethodPost, fmt.Sprintf("/leader/machines/%d/repair", id), nil, cmd.OutOrStdout())
		},
	}
}

func (c *cli) advanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "advance TICKET_ID",
		Short: "Move a repair ticket to its next stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.call(cmd.Context(), http.MethodPost, "/engineering/tickets/"+args[0]+"/advance", nil, cmd.OutOrStdout())
		},
	}
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the machine board over gRPC",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cl, err := server.Dial(c.grpcAddr)
			if err != nil {
				return err
			}
			defer cl.Close()
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			b, err := cl.Board(ctx)
			if err != nil {
				return fmt.Errorf("get board: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  remaining %s  (v%d)\n\n", b.ShiftID, b.Remaining, b.Version)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tMACHINE\tPRODUCT\tTARGET\tDONE\tEFF\tSTATUS\tPROBLEM\tREPAIR")
			for _, m := range b.Machines {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d%%\t%s\t%s\t%v\n",
					m.ID, m.Name, m.Product, m.Target, m.Achievement, m.Efficiency, m.Status, m.Problem, m.RepairRequested)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if len(b.Tickets) > 0 {
				fmt.Fprintln(out)
				tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TICKET\tMACHINE\tSTAGE\tSTATUS\tOPENED")
				for _, t := range b.Tickets {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.MachineName, t.PipelineStage, t.Status, t.CreatedAt.Format(time.TimeOnly))
				}
				return tw.Flush()
			}
			return nil
		},
	}
}

func (c *cli) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream dashboard events from NATS",
		RunE: func(cmd *cobra.Command, _ []string) error {
			nc, err := natsclient.Connect(c.natsURL, "prodctl", c.log)
			if err != nil {
				return fmt.Errorf("connect nats: %w", err)
			}
			defer nc.Drain()

			out := cmd.OutOrStdout()
			sub, err := nc.Subscribe(c.subject+".>", func(m *nats.Msg) {
				var ev events.Event
				if err := json.Unmarshal(m.Data, &ev); err != nil {
					c.log.Warn("bad event", zap.String("subject", m.Subject), zap.Error(err))
					return
				}
				fmt.Fprintf(out, "%s  %-16s machine=%d ticket=%s stage=%s %s\n",
					ev.Time.Format(time.TimeOnly), ev.Type, ev.MachineID, ev.TicketID, ev.Stage, ev.Problem)
			})
			if err != nil {
				return err
			}
			defer sub.Unsubscribe()

			fmt.Fprintf(out, "watching %s.> (%s), clock %s\n", c.subject, c.natsURL, shiftclock.At(time.Now()).RemainingString())
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			return nil
		},
	}
}

// call sends an HTTP request and copies the response body to w.
func (c *cli) call(ctx context.Context, method, path string, body any, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.httpBase+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	client := &http.Client{
		Timeout: 10 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	c.log.Debug("request", zap.String("method", method), zap.String("path", path))
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusSeeOther:
		return errors.New("not logged in: run `prodctl login` and export PRODCTL_TOKEN")
	case resp.StatusCode >= 400:
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, e.Error)
	}

	var pretty bytes.Buffer
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if json.Indent(&pretty, raw, "", "  ") == nil {
		raw = pretty.Bytes()
	}
	_, err = w.Write(raw)
	return err
}
