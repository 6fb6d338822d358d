// Command exoseek-score scores one TOI candidate against the configured model and exits
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"exoseek/internal/modkit"
	"exoseek/internal/platform/config"
	perr "exoseek/internal/platform/errors"
	"exoseek/internal/platform/logger"
	"exoseek/internal/platform/net/http/bind"

	"exoseek/internal/services/toi/domain"
	toimod "exoseek/internal/services/toi/module"

	"github.com/joho/godotenv"
)

func floatFlag(fs *flag.FlagSet, name, usage string, dst **float64) {
	fs.Func(name, usage, func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("%s must be a number", name)
		}
		*dst = &v
		return nil
	})
}

func main() {
	_ = godotenv.Load()
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("exoseek-score", flag.ContinueOnError)

	var in domain.PredictInput
	floatFlag(fs, "period", "orbital period (days)", &in.PeriodDays)
	floatFlag(fs, "duration", "transit duration (hours)", &in.DurationHr)
	floatFlag(fs, "depth", "transit depth (%), 0.12 means 0.12%", &in.DepthPct)
	floatFlag(fs, "snr", "signal to noise ratio, 0 when unknown", &in.SNR)
	var (
		fModel    = fs.String("model", "", "artifact path (default CORE_TOI_MODEL_PATH)")
		fMetadata = fs.String("metadata", "", "metadata path (default CORE_TOI_METADATA_PATH)")
		fJSON     = fs.Bool("json", false, "print the JSON payload instead of a summary line")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	// stdout carries the result
	lo := logger.FromEnv()
	lo.Writer = os.Stderr
	if os.Getenv("LOG_LEVEL") == "" {
		lo.Level = "warn"
	}
	logger.Init(lo)
	l := logger.Get()

	if err := bind.Validate(in); err != nil {
		fmt.Fprintln(os.Stderr, perr.WireFrom(err).Message)
		return 2
	}

	// the watcher and the audit worker stop on ctx; cancel before Close or it waits forever
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mod := toimod.New(modkit.Deps{Cfg: config.New(), Log: *l}, toimod.Options{
		ModelPath:    *fModel,
		MetadataPath: *fMetadata,
	})
	if err := mod.Start(ctx); err != nil {
		l.Error().Err(err).Msg("toi module failed to start")
		return 1
	}
	defer func() {
		cancel()
		_ = mod.Close()
	}()

	out, err := mod.Service().Predict(ctx, in.Raw())
	if err != nil {
		body := domain.ErrorBody{Error: perr.WireFrom(err).Message}
		if perr.IsCode(err, perr.ErrorCodeInference) {
			body.UsedFeatures = out.UsedFeatures
		}
		if *fJSON {
			_ = json.NewEncoder(os.Stdout).Encode(body)
		} else {
			fmt.Fprintln(os.Stderr, body.Error)
		}
		return 1
	}

	if *fJSON {
		_ = json.NewEncoder(os.Stdout).Encode(out.Prediction)
		return 0
	}
	fmt.Printf("%s  p=%.3f  features=%v\n", out.Prediction.Prediction, out.Probability, out.UsedFeatures)
	return 0
}
