package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront-checkout/internal/config"
	"github.com/imrishuroy/go-storefront-checkout/internal/sandbox"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)

	cfg, err := config.LoadServer()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	log.SetLevel(config.ParseLevel(cfg.LogLevel))
	if !cfg.RunLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	srvCfg, closeFn, err := buildServerConfig(context.Background(), cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to init backend")
	}
	defer closeFn()

	r := sandbox.NewRouter(sandbox.New(srvCfg))

	// if RUN_LOCAL is "true", run a local HTTP server for development.
	if cfg.RunLocal {
		runLocal(r, ":"+cfg.Port)
		return
	}

	adapter := ginadapter.New(r)
	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}

func runLocal(handler http.Handler, addr string) {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.WithField("addr", addr).Info("running local server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("failed to run local server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("shutdown")
	}
}
