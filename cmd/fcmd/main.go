// Copyright 2021 Alvalor S.A.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy of
// the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations under
// the License.

package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/danslocombe/fcmd-sub000/completion"
	"github.com/danslocombe/fcmd-sub000/trie"
)

func main() {
	var (
		flagDebug  bool
		flagTestMP string
	)

	pflag.BoolVar(&flagDebug, "debug", false, "enable debug logging; use the current directory as the state directory")
	pflag.StringVar(&flagTestMP, "test-mp", "", "multi-process test harness mode: insert, search or verify")

	pflag.Parse()

	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	log := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)
	if flagDebug {
		log = log.Level(zerolog.DebugLevel)
	}

	if flagTestMP != "" {
		os.Exit(runTestMP(log, flagTestMP, pflag.Args()))
	}

	os.Exit(runShell(log))
}

// runTestMP implements the "--test-mp" CLI surface used by the multi-process
// property tests: each invocation opens its own BackingStore over the given
// state directory, performs one production-code-path operation, and exits
// with a status the test harness can assert on.
func runTestMP(log zerolog.Logger, mode string, args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: fcmd --test-mp <insert|search|verify> <state_dir> <line> [<line>...]")
		return 2
	}

	stateDir := args[0]
	lines := args[1:]

	store, err := trie.Open(log, &stateDir)
	if err != nil {
		log.Error().Err(err).Msg("could not open state file")
		return 1
	}
	defer store.Close()

	store.WithMetrics(trie.NewMetrics())
	view := store.View()

	switch mode {
	case "insert":
		if err := trie.Insert(view, []byte(lines[0]), trie.MaxCost); err != nil {
			log.Error().Err(err).Msg("could not insert line")
			return 1
		}
		return 0

	case "search":
		result, err := trie.Walk(view, []byte(lines[0]))
		if err != nil {
			log.Error().Err(err).Msg("could not walk line")
			return 1
		}
		if result.Found && result.Consumed == len(lines[0]) {
			return 0
		}
		return 1

	case "verify":
		for _, line := range lines {
			result, err := trie.Walk(view, []byte(line))
			if err != nil {
				log.Error().Err(err).Msg("could not walk line")
				return 1
			}
			if !result.Found || result.Consumed != len(line) {
				return 1
			}
		}
		return 0

	default:
		fmt.Fprintf(os.Stderr, "unknown --test-mp mode %q\n", mode)
		return 2
	}
}

// runShell runs the interactive command loop: for every non-empty line it
// prints the completion engine's suggestion for that line, if there is one,
// and then feeds the line to the engine's history. It stands
// in for the line-editing front-end a real shell would own; this repository
// owns only the completion core the front-end calls into.
func runShell(log zerolog.Logger) int {
	store, err := trie.Open(log, nil)
	if err != nil {
		log.Error().Err(err).Msg("could not open state file")
		return 1
	}
	defer store.Close()

	store.WithMetrics(trie.NewMetrics())

	engine, err := completion.NewEngine(log, store)
	if err != nil {
		log.Error().Err(err).Msg("could not start completion engine")
		return 1
	}
	defer engine.Close()

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Fprint(os.Stdout, "$ ")
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			fmt.Fprint(os.Stdout, "$ ")
			continue
		}

		if suggestion, err := engine.Query(line, completion.Flags{}); err != nil {
			log.Warn().Err(err).Msg("completion query failed")
		} else if len(suggestion) > 0 {
			fmt.Fprintf(os.Stdout, "-> %s%s\n", line, suggestion)
		}

		if err := engine.Update(line); err != nil {
			log.Warn().Err(err).Msg("could not record history")
		}

		fmt.Fprint(os.Stdout, "$ ")
	}

	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("shell input error")
		return 1
	}

	return 0
}
