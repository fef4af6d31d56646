package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/speechscope/pkg/speech"
)

// exitNoAnalysis is returned when at least one input could not be analysed.
const exitNoAnalysis = 2

type analyzeFlags struct {
	pretty bool
	stages bool
}

func newAnalyzeCmd(g *globalFlags) *cobra.Command {
	f := &analyzeFlags{}
	cmd := &cobra.Command{
		Use:   "analyze [file ...]",
		Short: "Analyse audio files and print one JSON document per file",
		Long: "Analyse raw 16-bit PCM or WAV files. With no arguments, or the argument \"-\",\n" +
			"the audio is read from standard input.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, g, f, args)
		},
	}
	cmd.Flags().BoolVar(&f.pretty, "pretty", false, "indent the JSON output")
	cmd.Flags().BoolVar(&f.stages, "stages", false, "include per-stage diagnostics")
	return cmd
}

func runAnalyze(cmd *cobra.Command, g *globalFlags, f *analyzeFlags, args []string) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	lv := new(slog.LevelVar)
	lv.Set(slogLevel(cfg.Server.LogLevel))
	logger := newLogger(cmd.ErrOrStderr(), lv)

	a, err := speech.New(cfg.Analysis, speech.WithLogger(logger))
	if err != nil {
		return err
	}
	if len(args) == 0 {
		args = []string{"-"}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if f.pretty {
		enc.SetIndent("", "  ")
	}

	var failed int
	for _, name := range args {
		data, err := readInput(cmd.InOrStdin(), name)
		if err != nil {
			return err
		}
		res, err := a.AnalyzeAudio(cmd.Context(), data)
		if errors.Is(err, speech.ErrNoAnalysis) {
			logger.Warn("analyze: no analysis", "input", name, "err", err)
			failed++
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}

		doc := a.Serialize(res)
		if len(args) > 1 {
			doc["source"] = name
		}
		if f.stages {
			doc["stages"] = speech.StagesToMap(res.Stages)
		}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}

	if failed > 0 {
		return &exitError{
			code: exitNoAnalysis,
			err:  fmt.Errorf("%d of %d inputs could not be analysed: %w", failed, len(args), speech.ErrNoAnalysis),
		}
	}
	return nil
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}
