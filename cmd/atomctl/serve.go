package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/atom/internal/errors"
	"github.com/vango-dev/atom/internal/inspect"
)

const shutdownTimeout = 5 * time.Second

func serveCmd(g *globals) *cobra.Command {
	var (
		addr    string
		restore string
	)

	cmd := &cobra.Command{
		Use:   "serve <scenario>",
		Short: "Run a scenario and serve it for inspection",
		Long: `Serve runs the scenario's steps and then keeps its registry alive behind
an HTTP inspector until interrupted.

Endpoints:
  GET  /healthz
  GET  /metrics
  GET  /atoms
  GET  /atoms/{name}
  PUT  /atoms/{name}        body: a JSON value
  GET  /atoms/{name}/watch  websocket

Examples:
  atomctl serve counter.yaml
  atomctl serve counter.yaml --addr :7070`,
		Args: scenarioArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := g.setup(ctx, args[0], restore, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if addr != "" {
				e.cfg.Serve.Addr = addr
			}

			if err := e.world.Run(ctx, cmd.OutOrStdout()); err != nil {
				return err
			}

			handler := inspect.NewServer(e.world,
				inspect.WithLogger(e.logger),
				inspect.WithGatherer(e.metrics),
				inspect.WithRegisterer(e.metrics),
			)
			return serve(ctx, e, handler, cmd)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from atomctl.yaml)")
	cmd.Flags().StringVar(&restore, "restore", "", "Start from the snapshot with this reference")
	return cmd
}

func serve(ctx context.Context, e *env, handler http.Handler, cmd *cobra.Command) error {
	ln, err := net.Listen("tcp", e.cfg.Serve.Addr)
	if err != nil {
		return errors.New("A401").WithDetailf("listen on %s", e.cfg.Serve.Addr).Wrap(err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: e.cfg.Serve.ReadTimeout.Duration(),
	}

	fmt.Fprintf(cmd.OutOrStdout(), "inspecting %s on http://%s\n", e.world.Name(), ln.Addr())
	e.logger.Info("inspector listening", "addr", ln.Addr().String())

	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ln)
	}()

	select {
	case err := <-done:
		if !stderrors.Is(err, http.ErrServerClosed) {
			return errors.New("A401").Wrap(err)
		}
		return nil
	case <-ctx.Done():
	}

	e.logger.Info("inspector shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.New("A401").WithDetail("shutdown").Wrap(err)
	}
	return nil
}
