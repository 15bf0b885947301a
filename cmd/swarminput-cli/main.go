// Command swarminput-cli expands prompt templates through the tag
// interpreter and typed parameter map, standalone from any image backend.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/do49/swarminput/internal/paramdef"
	"github.com/do49/swarminput/pkg/swarminput"
)

func main() {
	var (
		promptStr = flag.String("e", "", "Expand a prompt string directly")
		negStr    = flag.String("n", "", "Negative prompt string, paired with -e or -f")
		file      = flag.String("f", "", "Expand a prompt template file")
		modelsDB  = flag.String("models", "", "SQLite model/lora/embedding registry path (default: in-memory)")
		wildcards = flag.String("wildcards", "", "Wildcard files directory")
		presets   = flag.String("presets", "", "Preset files directory")
		seed      = flag.Int64("seed", -1, "Seed (-1 randomizes)")
		jsonOut   = flag.Bool("json", false, "Print the full metadata envelope instead of just the expanded prompt")
	)
	flag.Parse()

	opts := []swarminput.Option{}
	if *modelsDB != "" {
		opts = append(opts, swarminput.WithSQLiteModelRegistry(*modelsDB))
	} else {
		opts = append(opts, swarminput.WithMemoryModelRegistry())
	}
	if *wildcards != "" {
		opts = append(opts, swarminput.WithWildcardDir(*wildcards))
	}
	if *presets != "" {
		opts = append(opts, swarminput.WithPresetDir(*presets))
	}

	rt := swarminput.New(opts...)
	defer rt.Close()

	switch {
	case *promptStr != "":
		runOne(rt, *promptStr, *negStr, *seed, *jsonOut)

	case *file != "":
		data, err := os.ReadFile(*file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
			os.Exit(1)
		}
		runOne(rt, string(data), *negStr, *seed, *jsonOut)

	case !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()):
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading stdin: %v\n", err)
			os.Exit(1)
		}
		runOne(rt, string(data), *negStr, *seed, *jsonOut)

	default:
		runREPL(rt)
	}
}

func runOne(rt *swarminput.Runtime, prompt, negative string, seed int64, jsonOut bool) {
	in := rt.NewInput(seed)
	if err := in.SetRawText(paramdef.IDSeed, fmt.Sprintf("%d", seed)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := in.SetRawText(paramdef.IDPrompt, prompt); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if negative != "" {
		if err := in.SetRawText(paramdef.IDNegativePrompt, negative); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if err := rt.Prepare(in); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if jsonOut {
		b, err := rt.MetadataJSON(in)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(b))
		return
	}

	if v, ok := in.Get(paramdef.IDPrompt); ok {
		fmt.Println(v.String())
	}
	if negative != "" {
		if v, ok := in.Get(paramdef.IDNegativePrompt); ok {
			fmt.Println("---")
			fmt.Println(v.String())
		}
	}
	for _, w := range in.ParserWarnings() {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
}
