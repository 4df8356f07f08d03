// Command parlayctl evaluates a single parlay from a JSON request and
// prints the wire-schema JSON result. It is a one-shot CLI,
// not a server: the HTTP surface, database, and odds-ingestion workers
// an HTTP service would otherwise own are left to whatever process invokes this
// binary per request.
//
// Usage:
//
//	parlayctl < request.json
//	parlayctl request.json
package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/parlay-evaluator/internal/config"
	"github.com/stitts-dev/parlay-evaluator/internal/orchestrator"
	"github.com/stitts-dev/parlay-evaluator/internal/parlay"
	"github.com/stitts-dev/parlay-evaluator/internal/telemetry"
	"github.com/stitts-dev/parlay-evaluator/internal/wire"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}

	log := telemetry.Init("", cfg.IsDevelopment())
	log.WithFields(logrus.Fields{
		"env":                  cfg.Env,
		"default_sample_count": cfg.DefaultSampleCount,
	}).Info("starting parlayctl")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Warn("received shutdown signal, aborting")
		cancel()
	}()

	orch, err := orchestrator.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Error("failed to initialize orchestrator")
		return 1
	}
	defer orch.Stop()

	req, err := readRequest(os.Args[1:])
	if err != nil {
		log.WithError(err).Error("failed to read request")
		return 1
	}

	gameCtx, legs, marginals, snapshot, err := req.ToDomain()
	if err != nil {
		log.WithError(err).Error("failed to translate request")
		return 1
	}

	evalCtx, evalCancel := context.WithTimeout(ctx, cfg.Deadline()+cfg.Deadline())
	defer evalCancel()

	eval, err := orch.Evaluate(evalCtx, gameCtx, legs, marginals, snapshot, req.Seed, req.SampleCount)
	if err != nil {
		writeError(err)
		return 1
	}

	if err := writeResponse(eval); err != nil {
		log.WithError(err).Error("failed to write response")
		return 1
	}
	return 0
}

func readRequest(args []string) (wire.EvaluateRequest, error) {
	var r io.Reader = os.Stdin
	if len(args) > 0 {
		f, err := os.Open(args[0])
		if err != nil {
			return wire.EvaluateRequest{}, err
		}
		defer f.Close()
		r = f
	}

	var req wire.EvaluateRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return wire.EvaluateRequest{}, err
	}
	return req, nil
}

func writeResponse(eval parlay.ParlayEvaluation) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(wire.FromDomain(eval))
}

func writeError(err error) {
	enc := json.NewEncoder(os.Stderr)
	enc.Encode(map[string]string{
		"error_code":    string(parlay.CodeOf(err)),
		"error_message": err.Error(),
	})
}
