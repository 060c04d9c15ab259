// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package node implements the agent process that runs remote tasks
// and actors on behalf of clients: a local executor exposed through
// the REST API of package server.
package node

import (
	"context"
	"flag"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"time"

	"github.com/grailbio/remote/config"
	"github.com/grailbio/remote/local"
	"github.com/grailbio/remote/log"
	"github.com/grailbio/remote/rest"
	"github.com/grailbio/remote/server"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	yaml "gopkg.in/yaml.v2"
)

// maxConcurrentStreams is the number of concurrent http/2 streams we
// support.
const maxConcurrentStreams = 20000

// idlePeriod is the period at which the node checks whether it is
// idle.
var idlePeriod = time.Minute

// A Server is a node server, exposing a local executor over an HTTP
// server.
type Server struct {
	// The server's config. Its logger, metrics, and tracing keys
	// configure the server; the executor key is not used.
	Config config.Config

	// Addr is the address on which to listen.
	Addr string
	// Concurrency is the number of tasks the node runs at once.
	Concurrency int
	// Mailbox is the number of calls that may be queued on an actor.
	Mailbox int
	// Rate is the number of submissions admitted per second; 0
	// admits all submissions.
	Rate float64
	// Burst is the number of submissions that may be admitted at
	// once above Rate.
	Burst int
	// Idle is the duration after which an idle node shuts down; 0
	// keeps the node up.
	Idle time.Duration
	// HTTPDebug determines whether HTTP debug logging is turned on.
	HTTPDebug bool

	configFlag string
}

// AddFlags adds flags configuring various node parameters to
// the provided FlagSet.
func (s *Server) AddFlags(flags *flag.FlagSet) {
	flags.StringVar(&s.configFlag, "config", "", "the configuration file")
	flags.StringVar(&s.Addr, "addr", ":9000", "HTTP server address")
	flags.IntVar(&s.Concurrency, "concurrency", 0, "number of tasks run at once (default: number of CPUs)")
	flags.IntVar(&s.Mailbox, "mailbox", local.DefaultMailbox, "number of calls that may be queued on an actor")
	flags.Float64Var(&s.Rate, "rate", 0, "submissions admitted per second; 0 admits all")
	flags.IntVar(&s.Burst, "burst", 100, "submissions admitted at once above -rate")
	flags.DurationVar(&s.Idle, "idle", 0, "shut down after being idle for this long; 0 never shuts down")
	flags.BoolVar(&s.HTTPDebug, "httpdebug", false, "turn on HTTP debug logging")
}

// ListenAndServe serves the node on the configured address until ctx
// is canceled or the node has been idle for s.Idle.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves the node on the provided listener until ctx is
// canceled or the node has been idle for s.Idle. Serve returns nil
// when the node was shut down by either.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.Config == nil {
		s.Config = make(config.Base)
	}
	if s.configFlag != "" {
		b, err := ioutil.ReadFile(s.configFlag)
		if err != nil {
			return err
		}
		if err := config.Unmarshal(b, s.Config.Keys()); err != nil {
			return err
		}
	}
	cfg, err := config.Make(&config.Env{Config: s.Config})
	if err != nil {
		return err
	}
	s.Config = config.Once(cfg)
	logger, err := s.Config.Logger()
	if err != nil {
		return err
	}
	m, err := s.Config.Metrics()
	if err != nil {
		return err
	}
	shutdown, err := s.Config.Tracing(ctx)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			logger.Errorf("trace shutdown: %v", err)
		}
	}()

	e := &local.Executor{
		Concurrency: s.Concurrency,
		Mailbox:     s.Mailbox,
		Log:         logger.Tee(nil, "executor: "),
		Metrics:     m,
	}
	if err := e.Start(); err != nil {
		return err
	}
	defer e.Stop()

	var httpLog *log.Logger
	if s.HTTPDebug {
		httpLog = logger.Tee(nil, "http: ")
		if httpLog != nil {
			httpLog.Level = log.DebugLevel
		}
	}
	var admit *rate.Limiter
	if s.Rate > 0 {
		admit = rate.NewLimiter(rate.Limit(s.Rate), s.Burst)
	}
	mux := http.NewServeMux()
	mux.Handle("/", rest.Handler(server.NewNode(e, admit, m), httpLog))
	cfgNode, err := newConfigNode(s.Config)
	if err != nil {
		return fmt.Errorf("read config: %v", err)
	}
	mux.Handle("/v1/config", rest.DoFuncHandler(cfgNode, httpLog))
	if h, ok := m.(interface{ Handler() http.Handler }); ok {
		mux.Handle("/metrics", h.Handler())
	}
	handler := otelhttp.NewHandler(mux, "node")
	srv := &http.Server{
		Handler: h2c.NewHandler(handler, &http2.Server{
			MaxConcurrentStreams: maxConcurrentStreams,
		}),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Printf("serving on %s", ln.Addr())
		if err := srv.Serve(ln); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	idle := make(chan struct{})
	if s.Idle > 0 {
		g.Go(func() error {
			return watchIdle(ctx, e, s.Idle, idle)
		})
	}
	g.Go(func() error {
		select {
		case <-ctx.Done():
		case <-idle:
			logger.Printf("node idle for %s; shutting down", s.Idle)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
	return g.Wait()
}

// watchIdle closes idle once e has been idle for d. The node is
// always given d to receive work.
func watchIdle(ctx context.Context, e *local.Executor, d time.Duration, idle chan<- struct{}) error {
	period := idlePeriod
	if d < period {
		period = d
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if e.IdleFor(d) {
				close(idle)
				return nil
			}
		}
	}
}

func newConfigNode(cfg config.Config) (rest.DoFunc, error) {
	keys := make(config.Keys)
	if err := cfg.Marshal(keys); err != nil {
		return nil, fmt.Errorf("marshal config: %v", err)
	}
	b, err := yaml.Marshal(keys)
	if err != nil {
		return nil, fmt.Errorf("serialize keys: %v", err)
	}
	return func(ctx context.Context, call *rest.Call) {
		if !call.Allow("GET") {
			return
		}
		call.Reply(http.StatusOK, string(b))
	}, nil
}
