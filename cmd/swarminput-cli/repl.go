package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/do49/swarminput/internal/paramdef"
	"github.com/do49/swarminput/pkg/swarminput"
)

// runREPL reads prompt templates one line at a time and prints their
// expansion. Lines starting with ':' are commands: :seed N sets the seed
// for subsequent expansions, :json toggles full-metadata output.
func runREPL(rt *swarminput.Runtime) {
	fmt.Println("swarminput-cli REPL (Ctrl+D to exit)")
	fmt.Println("commands: :seed N   :json   :quit")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	seed := int64(-1)
	jsonOut := false

	for {
		fmt.Print(">>> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println()
			return
		}
		line = strings.TrimRight(line, "\r\n")

		if strings.TrimSpace(line) == "" {
			continue
		}

		if strings.HasPrefix(line, ":") {
			handleCommand(line, &seed, &jsonOut)
			continue
		}

		in := rt.NewInput(seed)
		if err := in.SetRawText(paramdef.IDSeed, strconv.FormatInt(seed, 10)); err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		if err := in.SetRawText(paramdef.IDPrompt, line); err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		if err := rt.Prepare(in); err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}

		if jsonOut {
			b, err := rt.MetadataJSON(in)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			fmt.Println(string(b))
			continue
		}

		if v, ok := in.Get(paramdef.IDPrompt); ok {
			fmt.Println(v.String())
		}
		for _, w := range in.ParserWarnings() {
			fmt.Printf("warning: %s\n", w)
		}
	}
}

func handleCommand(line string, seed *int64, jsonOut *bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case ":seed":
		if len(fields) < 2 {
			fmt.Println("usage: :seed N")
			return
		}
		n, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			fmt.Printf("invalid seed: %v\n", err)
			return
		}
		*seed = n
	case ":json":
		*jsonOut = !*jsonOut
		fmt.Printf("json output: %v\n", *jsonOut)
	case ":quit":
		os.Exit(0)
	default:
		fmt.Printf("unknown command: %s\n", fields[0])
	}
}
