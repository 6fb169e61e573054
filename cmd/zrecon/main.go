// Command zrecon is the thin CLI shell around the pipeline package.
// Grounded on the read-file/call-library/write-output shape of
// Urethramancer-m68k's cmd/dis68/main.go and cmd/asm68/main.go, with
// its subcommand/flag structure lifted from
// chriskillpack-bbcdisasm/cmd/bbc-disasm/main.go's cli.NewApp() /
// app.Commands / cli.NewExitError usage.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/urfave/cli"
	"gopkg.in/yaml.v3"

	"github.com/go-zarch/zrecon/pipeline"
)

var log zerolog.Logger

func main() {
	app := cli.NewApp()
	app.Name = "zrecon"
	app.Usage = "Recover procedures, control flow, and pseudocode from z/Architecture binaries"
	app.Flags = []cli.Flag{
		cli.BoolFlag{Name: "json", Usage: "emit logs as JSON instead of a console writer"},
		cli.BoolFlag{Name: "verbose, v", Usage: "print full error cause chains"},
	}
	app.Before = func(c *cli.Context) error {
		configureLogging(c.Bool("json"))
		return nil
	}
	app.Commands = []cli.Command{
		analyzeCommand(),
		asmCommand(),
		pseudoCommand(),
		reportCommand(),
	}
	app.Action = func(c *cli.Context) error {
		return cli.ShowAppHelp(c)
	}

	app.Run(os.Args)
}

func configureLogging(jsonOutput bool) {
	if jsonOutput {
		log = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{Name: "entry", Usage: "comma-separated hex entry-point hints (e.g. 0x1000,0x2040)"},
		cli.IntFlag{Name: "window", Value: pipeline.DefaultConfig().DecodeWindowSize, Usage: "classifier decode window size in bytes"},
		cli.Float64Flag{Name: "code-threshold", Value: pipeline.DefaultConfig().CodeThreshold, Usage: "classifier code-confidence threshold"},
		cli.Float64Flag{Name: "data-threshold", Value: pipeline.DefaultConfig().DataThreshold, Usage: "classifier data-confidence threshold"},
		cli.BoolFlag{Name: "no-hex", Usage: "set the EmitHex config field to false (the assembler listing does not read it and always hex-dumps unknown spans)"},
		cli.StringFlag{Name: "style", Value: "c-like", Usage: "pseudocode style: c-like or python-like"},
		cli.StringFlag{Name: "out, o", Usage: "output file path (stdout if omitted)"},
	}
}

func analyzeCommand() cli.Command {
	return cli.Command{
		Name:      "analyze",
		Usage:     "Run the full pipeline and report its status",
		ArgsUsage: "file",
		Flags:     commonFlags(),
		Action: func(c *cli.Context) error {
			result, err := runAnalysis(c)
			if err != nil {
				return err
			}
			fmt.Printf("status=%s decode_rate=%.4f instructions=%d procedures=%d unresolved_spans=%d\n",
				result.Status, result.Statistics.DecodeRate, result.Statistics.DecodedInstructionCount,
				len(result.Procedures), len(result.Unknown))
			return exitForStatus(result.Status)
		},
	}
}

func asmCommand() cli.Command {
	return cli.Command{
		Name:      "asm",
		Usage:     "Render the HLASM-style assembler listing",
		ArgsUsage: "file",
		Flags:     commonFlags(),
		Action: func(c *cli.Context) error {
			result, err := runAnalysis(c)
			if err != nil {
				return err
			}
			if err := writeOutput(c, result.AsmListing); err != nil {
				return cli.NewExitError(err.Error(), 2)
			}
			return exitForStatus(result.Status)
		},
	}
}

func pseudoCommand() cli.Command {
	return cli.Command{
		Name:      "pseudo",
		Usage:     "Render recovered pseudocode",
		ArgsUsage: "file",
		Flags:     commonFlags(),
		Action: func(c *cli.Context) error {
			result, err := runAnalysis(c)
			if err != nil {
				return err
			}
			if err := writeOutput(c, result.PseudoListing); err != nil {
				return cli.NewExitError(err.Error(), 2)
			}
			return exitForStatus(result.Status)
		},
	}
}

func reportCommand() cli.Command {
	return cli.Command{
		Name:      "report",
		Usage:     "Dump the full analysis result as YAML",
		ArgsUsage: "file",
		Flags:     commonFlags(),
		Action: func(c *cli.Context) error {
			result, err := runAnalysis(c)
			if err != nil {
				return err
			}
			report := reportOf(result)
			out, marshalErr := yaml.Marshal(report)
			if marshalErr != nil {
				return cli.NewExitError(errors.Wrap(marshalErr, "zrecon: report marshal failed").Error(), 2)
			}
			if err := writeOutput(c, string(out)); err != nil {
				return cli.NewExitError(err.Error(), 2)
			}
			return exitForStatus(result.Status)
		},
	}
}

// report is a trimmed view of pipeline.AnalysisResult: the two rendered
// text streams are written out verbatim by their own commands, not
// duplicated inside the YAML report.
type report struct {
	Artifact   string              `yaml:"artifact"`
	Status     pipeline.Status     `yaml:"status"`
	Statistics pipeline.Statistics `yaml:"statistics"`
	Regions    int                 `yaml:"region_count"`
	Procedures []procedureSummary  `yaml:"procedures"`
	CallEdges  int                 `yaml:"call_edge_count"`
}

type procedureSummary struct {
	ID      string `yaml:"id"`
	Entry   string `yaml:"entry"`
	Linkage string `yaml:"linkage"`
	Blocks  int    `yaml:"block_count"`
}

func reportOf(result pipeline.AnalysisResult) report {
	procs := make([]procedureSummary, 0, len(result.Procedures))
	for _, p := range result.Procedures {
		procs = append(procs, procedureSummary{
			ID:      p.ID,
			Entry:   fmt.Sprintf("0x%08X", p.Entry),
			Linkage: string(p.Linkage),
			Blocks:  len(p.Blocks),
		})
	}
	return report{
		Artifact:   result.Artifact.ID,
		Status:     result.Status,
		Statistics: result.Statistics,
		Regions:    len(result.Regions),
		Procedures: procs,
		CallEdges:  len(result.CallGraph.Edges),
	}
}

func runAnalysis(c *cli.Context) (pipeline.AnalysisResult, error) {
	args := c.Args()
	if len(args) < 1 {
		return pipeline.AnalysisResult{}, cli.NewExitError("zrecon: missing input file", 2)
	}
	path := args[0]

	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.AnalysisResult{}, reportError(c, errors.Wrapf(err, "zrecon: could not read %s", path))
	}

	entries, err := parseEntryHints(c.String("entry"))
	if err != nil {
		return pipeline.AnalysisResult{}, reportError(c, err)
	}

	cfg := pipeline.DefaultConfig()
	cfg.DecodeWindowSize = c.Int("window")
	cfg.CodeThreshold = c.Float64("code-threshold")
	cfg.DataThreshold = c.Float64("data-threshold")
	cfg.EmitHex = !c.Bool("no-hex")
	if strings.EqualFold(c.String("style"), "python-like") {
		cfg.PseudocodeStyle = pipeline.PseudoPythonLike
	}

	result, err := pipeline.Analyze(data, path, entries, cfg)
	if err != nil {
		return pipeline.AnalysisResult{}, reportError(c, err)
	}

	log.Info().Str("file", path).Str("status", string(result.Status)).
		Float64("decode_rate", result.Statistics.DecodeRate).
		Int("procedures", len(result.Procedures)).
		Msg("analysis complete")

	return result, nil
}

// reportError logs the full pkg/errors cause chain when -v is set, and
// always returns a flat cli.ExitError so urfave/cli's own reporting
// stays terse by default.
func reportError(c *cli.Context, err error) error {
	if c.GlobalBool("verbose") || c.Bool("verbose") {
		log.Error().Msg(fmt.Sprintf("%+v", err))
	} else {
		log.Error().Msg(err.Error())
	}
	return cli.NewExitError(err.Error(), 2)
}

func parseEntryHints(raw string) ([]uint64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	hints := make([]uint64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimPrefix(p, "0x"), "0X"), 16, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "zrecon: invalid entry hint %q", p)
		}
		hints = append(hints, v)
	}
	return hints, nil
}

func writeOutput(c *cli.Context, text string) error {
	out := c.String("out")
	if out == "" {
		fmt.Print(text)
		return nil
	}
	return errors.Wrapf(os.WriteFile(out, []byte(text), 0644), "zrecon: could not write %s", out)
}

// exitForStatus maps pipeline.Status to the exit codes spec.md §6
// assigns: success 0, partial 1, failure 2.
func exitForStatus(status pipeline.Status) error {
	switch status {
	case pipeline.StatusSuccess:
		return nil
	case pipeline.StatusPartial:
		return cli.NewExitError("", 1)
	default:
		return cli.NewExitError("", 2)
	}
}
