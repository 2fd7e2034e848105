package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/syedsany6/a2a-runtime/pkg/a2a"
	"github.com/syedsany6/a2a-runtime/pkg/auth"
	"github.com/syedsany6/a2a-runtime/pkg/cancel"
	"github.com/syedsany6/a2a-runtime/pkg/engine"
	"github.com/syedsany6/a2a-runtime/pkg/hub"
	"github.com/syedsany6/a2a-runtime/pkg/kg"
	"github.com/syedsany6/a2a-runtime/pkg/push"
	"github.com/syedsany6/a2a-runtime/pkg/service"
	"github.com/syedsany6/a2a-runtime/pkg/stores"
)

var (
	portFlag     int
	hostFlag     string
	storeDirFlag string
	requireAuth  bool

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the A2A agent runtime",
		Long:  longServe,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveAgent()
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&portFlag, "port", "p", 3210, "Port to serve on")
	serveCmd.Flags().StringVarP(&hostFlag, "host", "H", "0.0.0.0", "Host address to bind to")
	serveCmd.Flags().StringVar(&storeDirFlag, "store-dir", "", "Directory for file-backed Task persistence (defaults to an in-memory store)")
	serveCmd.Flags().BoolVar(&requireAuth, "require-auth", false, "Require a bearer token on /rpc")
}

func serveAgent() error {
	url := fmt.Sprintf("http://%s:%d", hostFlag, portFlag)
	card := a2a.NewAgentCardFromConfig("default")
	card.URL = url
	log.Info("starting agent runtime", "name", card.Name, "url", url)

	taskStore, err := newTaskStore()
	if err != nil {
		return err
	}

	cancels := cancel.NewRegistry()
	pusher := push.NewService()
	eng := engine.New(taskStore, cancels, pusher)
	h := hub.New()

	var kgStore kg.Store
	if card.Capabilities.KnowledgeGraph {
		kgStore = kg.NewInMemoryStore(kg.RequireJustificationPolicy{})
	}

	d := service.NewDispatcher(*card, eng, taskStore, kgStore, h, cancels)
	srv := service.NewServer(d)
	if requireAuth {
		srv.WithAuth(auth.NewService())
	}

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", hostFlag, portFlag),
		Handler: srv.Mux(),
	}

	go func() {
		log.Info("agent runtime listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down agent runtime")
	ctx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Error("server shutdown error", "error", err)
		return err
	}

	log.Info("agent runtime stopped")
	return nil
}

func newTaskStore() (stores.TaskStore, error) {
	if storeDirFlag != "" {
		return stores.NewFileTaskStore(storeDirFlag)
	}
	if dir := viper.GetString("agent.default.storeDir"); dir != "" {
		return stores.NewFileTaskStore(dir)
	}
	return stores.NewInMemoryTaskStore(), nil
}

var longServe = `
Serve an A2A agent over JSON-RPC and Server-Sent Events.

Examples:
  # Serve on the default port with in-memory Task persistence
  a2a-runtime serve

  # Serve with file-backed Task persistence and bearer-token auth
  a2a-runtime serve --store-dir ./data/tasks --require-auth
`
