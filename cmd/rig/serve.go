package main

import (
	"context"
	_ "embed"
	"fmt"
	"go/types"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/alecthomas/errors"
	"github.com/dyninc/qstring"

	"github.com/alecthomas/rig/internal/scan"
	"github.com/alecthomas/rig/providers/logging"
)

//go:embed index.gohtml
var index string
var indexTmpl = template.Must(template.New("cmd/rig/index.gohtml").Parse(index))

type ServeCmd struct {
	Bind string `help:"The address to bind the server to." default:"127.0.0.1:8080"`

	analyseFlags `embed:""`
}

// graphRequest is decoded from the /graph query parameters.
type graphRequest struct {
	Root   string `qstring:"root"`
	Format string `qstring:"format"`
}

type indexContext struct {
	Dest      string
	Roots     []rootView
	Providers []providerView
	Externals []string
}

type rootView struct {
	Name    string
	Partial bool
	Plan    string
}

type providerView struct {
	Name     string
	Provides string
	Weak     bool
	Position string
}

func (s *ServeCmd) Run(ctx context.Context, logger *slog.Logger) error {
	graph, err := s.analyse(ctx)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		plans, err := planRoots(graph, graph.Roots)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		tctx := indexContext{Dest: graph.Dest.Path()}
		for _, rp := range plans {
			tctx.Roots = append(tctx.Roots, rootView{
				Name:    rp.Name,
				Partial: !rp.Plan.FullyResolved(),
				Plan:    rp.Plan.String(),
			})
		}
		for _, provider := range graph.Providers {
			tctx.Providers = append(tctx.Providers, providerView{
				Name:     provider.Function.FullName(),
				Provides: types.TypeString(provider.Provides, nil),
				Weak:     provider.Directive.Weak,
				Position: provider.Position.String(),
			})
		}
		for _, ext := range graph.Externals {
			tctx.Externals = append(tctx.Externals, ext.String())
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := indexTmpl.Execute(w, tctx); err != nil {
			logger.Error("Failed to render index", "error", err)
		}
	})
	mux.HandleFunc("GET /graph", func(w http.ResponseWriter, r *http.Request) {
		req := graphRequest{}
		if err := qstring.Unmarshal(r.URL.Query(), &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		roots := graph.Roots
		if req.Root != "" {
			root, ok := graph.RootByName(req.Root)
			if !ok {
				http.Error(w, fmt.Sprintf("unknown root %q", req.Root), http.StatusNotFound)
				return
			}
			roots = []*scan.Root{root}
		}
		plans, err := planRoots(graph, roots)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		switch req.Format {
		case "", "json":
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			if err := renderPlansJSON(w, plans); err != nil {
				logger.Error("Failed to encode plans", "error", err)
			}
		case "dot":
			w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
			renderPlansDOT(w, plans)
		case "text":
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			renderPlansText(w, plans)
		default:
			http.Error(w, fmt.Sprintf("unknown format %q", req.Format), http.StatusBadRequest)
		}
	})
	server := &http.Server{
		Addr:              s.Bind,
		Handler:           mux,
		BaseContext:       func(l net.Listener) context.Context { return ctx },
		ReadTimeout:       time.Second * 10,
		WriteTimeout:      time.Second * 10,
		ReadHeaderTimeout: time.Second * 5,
		ErrorLog:          logging.Legacy(logger, slog.LevelError),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	logger.Info("Serving dependency explorer", "url", "http://"+s.Bind+"/")
	err = server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return errors.WithStack(err)
}
