// Command webkin serves a live kinematic-tree visualization: it loads a
// tree document from disk or an ingest adapter, applies persisted axis
// calibration, and serves the current scene over REST and WebSocket to any
// number of browser clients.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/webkin/webkin/calibration"
	"github.com/webkin/webkin/coordinator"
	"github.com/webkin/webkin/httpapi"
	"github.com/webkin/webkin/ingest"
	"github.com/webkin/webkin/kinematictree"
	"github.com/webkin/webkin/logging"
)

var logger = logging.NewLogger("webkin")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	app := buildApp(ctx, logger)
	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Errorw("exiting", "error", err)
		os.Exit(1)
	}
}

func buildApp(ctx context.Context, logger logging.Logger) *cli.App {
	return &cli.App{
		Name:  "webkin",
		Usage: "real-time kinematic-tree visualization server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Value: "0.0.0.0", Usage: "listen address"},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "listen port"},
			&cli.BoolFlag{Name: "z-up", EnvVars: []string{"Z_UP"}, Usage: "tell clients to treat +Z as up"},
			&cli.StringFlag{Name: "k3d", EnvVars: []string{"K3D_FILE"}, Usage: "path to a fallback tree document"},
			&cli.BoolFlag{Name: "mqtt", Usage: "ingest tree/joint updates from an MQTT broker"},
			&cli.BoolFlag{Name: "crow", Usage: "ingest tree/joint updates from a crowker datagram broker"},
			&cli.StringFlag{Name: "mqtt-broker", Usage: "MQTT broker host"},
			&cli.IntFlag{Name: "mqtt-port", Value: 1883, Usage: "MQTT broker port"},
			&cli.StringFlag{Name: "mqtt-joints-topic", Value: "webkin/joints"},
			&cli.StringFlag{Name: "mqtt-tree-topic", Value: "webkin/tree"},
			&cli.StringFlag{Name: "crowker", Usage: "crowker address, host:port"},
			&cli.StringFlag{Name: "crow-joints-topic", Value: "webkin/joints"},
			&cli.StringFlag{Name: "crow-tree-topic", Value: "webkin/tree"},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("debug") {
				logger.SetLevel(logging.DEBUG)
			}
			return serve(c.Context, c, logger)
		},
	}
}

func serve(ctx context.Context, c *cli.Context, logger logging.Logger) error {
	store := calibration.New(calibration.DefaultPath(), logger.Sublogger("calibration"))
	if err := store.Load(); err != nil {
		logger.Warnw("failed to load axis overrides, starting with an empty set", "error", err)
	}

	coord := coordinator.New(store, c.Bool("z-up"), logger.Sublogger("coordinator"))

	if path := c.String("k3d"); path != "" {
		doc, err := loadTreeFile(path)
		if err != nil {
			logger.Warnw("failed to load fallback tree file, starting with no tree", "path", path, "error", err)
		} else if err := coord.LoadTree(doc); err != nil {
			logger.Warnw("fallback tree document rejected", "path", path, "error", err)
		}
	}

	adapters, err := startAdapters(c, coord, logger)
	if err != nil {
		return err
	}
	defer func() {
		var disconnectErr error
		for _, a := range adapters {
			disconnectErr = multierr.Append(disconnectErr, a.Disconnect())
		}
		if disconnectErr != nil {
			logger.Warnw("error disconnecting ingest adapters", "error", disconnectErr)
		}
	}()

	handler := httpapi.New(coord, logger.Sublogger("httpapi"))
	httpServer, err := goutils.NewPlainTextHTTP2Server(handler)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", c.String("host"), c.Int("port"))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	serveDone := make(chan error, 1)
	goutils.PanicCapturingGo(func() {
		<-ctx.Done()
		if shutdownErr := httpServer.Shutdown(context.Background()); shutdownErr != nil {
			logger.Warnw("error during http server shutdown", "error", shutdownErr)
		}
	})
	goutils.PanicCapturingGo(func() {
		logger.Infow("serving", "addr", listener.Addr().String())
		serveErr := httpServer.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Errorw("http server stopped unexpectedly", "error", serveErr)
		}
		serveDone <- serveErr
	})

	<-ctx.Done()
	<-serveDone
	return nil
}

func startAdapters(c *cli.Context, coord *coordinator.Coordinator, logger logging.Logger) ([]ingest.Adapter, error) {
	var adapters []ingest.Adapter

	onTree := func(doc *kinematictree.NodeDoc) {
		if err := coord.LoadTree(doc); err != nil {
			logger.Warnw("ingest delivered a malformed tree document, keeping previous tree", "error", err)
		}
	}
	onJoints := func(joints map[string]float64) {
		coord.SetJoints(joints)
	}

	if c.Bool("mqtt") {
		adapter, err := ingest.NewMQTTAdapter(ingest.MQTTConfig{
			BrokerHost:  c.String("mqtt-broker"),
			BrokerPort:  c.Int("mqtt-port"),
			JointsTopic: c.String("mqtt-joints-topic"),
			TreeTopic:   c.String("mqtt-tree-topic"),
		}, onTree, onJoints, logger.Sublogger("ingest.mqtt"))
		if err != nil {
			logger.Warnw("mqtt adapter not started", "error", err)
		} else if err := adapter.Connect(); err != nil {
			logger.Warnw("mqtt adapter failed to connect", "error", err)
		} else {
			adapters = append(adapters, adapter)
		}
	}

	if c.Bool("crow") {
		adapter, err := ingest.NewCrowAdapter(ingest.CrowConfig{
			CrowkerAddr: c.String("crowker"),
			JointsTopic: c.String("crow-joints-topic"),
			TreeTopic:   c.String("crow-tree-topic"),
		}, onTree, onJoints, logger.Sublogger("ingest.crow"))
		if err != nil {
			logger.Warnw("crow adapter not started", "error", err)
		} else if err := adapter.Connect(); err != nil {
			logger.Warnw("crow adapter failed to connect", "error", err)
		} else {
			adapters = append(adapters, adapter)
		}
	}

	return adapters, nil
}

func loadTreeFile(path string) (*kinematictree.NodeDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc kinematictree.NodeDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
