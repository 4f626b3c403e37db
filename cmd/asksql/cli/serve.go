package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/asksql/asksql/internal/config"
	"github.com/asksql/asksql/internal/server"
)

const banner = `
           _              _
  __ _ ___| | _____  __ _| |
 / _' / __| |/ / __|/ _' | |
| (_| \__ \   <\__ \ (_| | |
 \__,_|___/_|\_\___/\__, |_|
                       |_|
`

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the asksql HTTP API server",
		Long:  "Start the HTTP server that exposes the chat, session and SQL endpoints.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), os.Stderr)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			if cmd.Flags().Changed("host") {
				a.cfg.Server.Host = host
			}
			return runServe(cmd, a)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port (overrides server.port)")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host (overrides server.host)")

	return cmd
}

func runServe(cmd *cobra.Command, a *app) error {
	out := cmd.OutOrStdout()
	fmt.Fprint(out, banner)
	fmt.Fprintln(out)

	a.checkDatabase(cmd.Context())

	sc := a.cfg.Server
	srvCfg := server.Config{
		Host:            sc.Host,
		Port:            sc.Port,
		ReadTimeout:     config.ParseDuration(sc.ReadTimeout, 30*time.Second),
		WriteTimeout:    config.ParseDuration(sc.WriteTimeout, 120*time.Second),
		ShutdownTimeout: config.ParseDuration(sc.ShutdownTimeout, 30*time.Second),
		CORSOrigins:     sc.CORS.Origins,
		MaxBodySize:     sc.MaxBodySize,
		RateLimit:       sc.RateLimit,
	}

	srv := server.New(srvCfg, server.Deps{
		Sessions:     a.newSessionManager(),
		Tools:        a.toolset,
		DatabasePath: a.cfg.Database.Path,
		Version:      versionString(),
	}, a.logger)

	fmt.Fprintf(out, "→ asksql %s (%s, %s)\n", versionString(), a.provider.Name(), a.cfg.Database.Path)
	fmt.Fprintf(out, "→ Listening on http://%s:%d\n", sc.Host, sc.Port)
	fmt.Fprintf(out, "→ Chat API:   http://%s:%d/api/v1/chat\n", sc.Host, sc.Port)
	fmt.Fprintf(out, "→ OpenAPI:    http://%s:%d/openapi.json\n", sc.Host, sc.Port)
	fmt.Fprintf(out, "→ Health:     http://%s:%d/healthz\n", sc.Host, sc.Port)
	fmt.Fprintln(out)

	return srv.ListenAndServe(cmd.Context())
}
