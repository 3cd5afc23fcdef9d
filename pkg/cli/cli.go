package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"text/tabwriter"

	"github.com/igolaizola/musikgen"
	"github.com/igolaizola/musikgen/pkg/cmd/batch"
	"github.com/igolaizola/musikgen/pkg/cmd/generate"
	"github.com/igolaizola/musikgen/pkg/generator"
	"github.com/igolaizola/musikgen/pkg/model"
	"github.com/igolaizola/musikgen/pkg/style"
	"github.com/peterbourgon/ff/ffyaml"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
)

func options() []ff.Option {
	return []ff.Option{
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ffyaml.Parser),
		ff.WithEnvVarPrefix("MUSIKGEN"),
	}
}

// New returns the command tree. The root command generates one song from the
// positional prompt.
func New(version, commit, date string) *ffcli.Command {
	cmd := "musikgen"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &generate.Config{}
	bindConfig(fs, &cfg.Config)
	fs.IntVar(&cfg.Duration, "duration", generator.DefaultDuration, "duration of the song in seconds")
	fs.StringVar(&cfg.Style, "style", style.Default, "music style (pop, rock, jazz, classical, electronic, ambient, hip-hop, country, reggae, blues)")
	fs.StringVar(&cfg.Output, "output", "", "output file (.wav, .mp3, .flac or .ogg), a unique wav name is used if empty")
	fs.IntVar(&cfg.SampleRate, "sample-rate", generator.DefaultSampleRate, "sample rate of the output file")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("%s [flags] [--] <prompt>", cmd),
		ShortHelp:  "generate a song from a text prompt",
		Options:    options(),
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			args = parseInterspersed(fs, args)
			cfg.Prompt = strings.Join(args, " ")
			if strings.TrimSpace(cfg.Prompt) == "" {
				return &generator.ConfigError{Field: "prompt", Reason: "missing prompt argument"}
			}
			return generate.Run(ctx, cfg, os.Stdout)
		},
		Subcommands: []*ffcli.Command{
			newVersionCommand(version, commit, date),
			newStylesCommand(os.Stdout),
			newBatchCommand(),
		},
	}
}

func bindConfig(fs *flag.FlagSet, cfg *musikgen.Config) {
	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.Backend, "backend", musikgen.BackendHuggingFace, "model backend (huggingface, audiocraft)")
	fs.StringVar(&cfg.Model, "model", model.DefaultModel, "pretrained model identifier")
	fs.StringVar(&cfg.Device, "device", string(model.Auto), "compute device (auto, cuda, cpu)")
	fs.StringVar(&cfg.Strategy, "strategy", "loudness", "write strategy (clip, peak, rms, loudness)")
	fs.StringVar(&cfg.OutputDir, "output-dir", "", "folder for generated file names")
	fs.StringVar(&cfg.Proxy, "proxy", "", "proxy to use")

	fs.StringVar(&cfg.HFToken, "hf-token", "", "hugging face token (defaults to HF_TOKEN)")
	fs.StringVar(&cfg.HFEndpoint, "hf-endpoint", "", "hugging face inference endpoint")
	fs.StringVar(&cfg.HFHub, "hf-hub", "", "hugging face hub models api")
	fs.StringVar(&cfg.Bin, "bin", "", "audiocraft bridge binary")

	fs.BoolVar(&cfg.Plot, "plot", false, "write a waveform plot next to the song")
	fs.StringVar(&cfg.FSType, "fs-type", "", "file storage type to upload songs (local, s3)")
	fs.StringVar(&cfg.FSConn, "fs-conn", "", "path for local, key:secret@bucket.region for s3")
}

// parseInterspersed parses flags placed after positional arguments. Tokens
// that don't name a defined flag, like "-8bit", are kept as prompt text. A
// prompt starting with a dash must follow "--".
func parseInterspersed(fs *flag.FlagSet, args []string) []string {
	var positional []string
	for len(args) > 0 {
		arg := args[0]
		if arg == "--" {
			return append(positional, args[1:]...)
		}
		f := lookupFlag(fs, arg)
		if f == nil {
			positional = append(positional, arg)
			args = args[1:]
			continue
		}
		// Parse a single flag so the next token isn't taken for one
		n := 1
		if !strings.Contains(arg, "=") && !isBoolFlag(f) && len(args) > 1 {
			n = 2
		}
		_ = fs.Parse(args[:n])
		args = args[n:]
	}
	return positional
}

func lookupFlag(fs *flag.FlagSet, arg string) *flag.Flag {
	if !strings.HasPrefix(arg, "-") {
		return nil
	}
	name := strings.TrimPrefix(strings.TrimPrefix(arg, "-"), "-")
	if i := strings.Index(name, "="); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return nil
	}
	return fs.Lookup(name)
}

func isBoolFlag(f *flag.Flag) bool {
	b, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}

func newVersionCommand(version, commit, date string) *ffcli.Command {
	return &ffcli.Command{
		Name:       "version",
		ShortUsage: "musikgen version",
		ShortHelp:  "print version",
		Exec: func(ctx context.Context, args []string) error {
			v := version
			if v == "" {
				if buildInfo, ok := debug.ReadBuildInfo(); ok {
					v = buildInfo.Main.Version
				}
			}
			if v == "" {
				v = "dev"
			}
			versionFields := []string{v}
			if commit != "" {
				versionFields = append(versionFields, commit)
			}
			if date != "" {
				versionFields = append(versionFields, date)
			}
			fmt.Println(strings.Join(versionFields, " "))
			return nil
		},
	}
}

func newStylesCommand(out io.Writer) *ffcli.Command {
	return &ffcli.Command{
		Name:       "styles",
		ShortUsage: "musikgen styles",
		ShortHelp:  "print the supported styles and their descriptors",
		Exec: func(ctx context.Context, args []string) error {
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, s := range style.List() {
				fmt.Fprintf(w, "%s\t%s\n", s.Tag, s.Descriptor)
			}
			return w.Flush()
		},
	}
}

func newBatchCommand() *ffcli.Command {
	cmd := "batch"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &batch.Config{}
	bindConfig(fs, &cfg.Config)
	fs.StringVar(&cfg.Input, "input", "", "csv, json or yaml with rows (fields: prompt,style,duration,output)")
	fs.IntVar(&cfg.Limit, "limit", 0, "limit the number of rows (0 means no limit)")
	fs.IntVar(&cfg.Duration, "duration", generator.DefaultDuration, "default duration in seconds")
	fs.StringVar(&cfg.Style, "style", style.Default, "default music style")
	fs.IntVar(&cfg.SampleRate, "sample-rate", generator.DefaultSampleRate, "sample rate of the output files")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("musikgen %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "generate one song per input row",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return batch.Run(ctx, cfg, os.Stdout)
		},
	}
}
