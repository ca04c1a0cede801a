// Command respond takes a survey from the terminal: it fetches the
// survey by hash, asks one question at a time, and keeps a resumable
// session file so an interrupted run picks up where it left off.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/backtalk/backtalk/log"
	"github.com/backtalk/backtalk/session"
)

func main() {
	var server, hash, rawQuery, stateDir string
	flag.StringVar(&server, "server", "http://localhost", "base URL of the survey server")
	flag.StringVar(&hash, "survey", "", "public hash of the survey to answer")
	flag.StringVar(&rawQuery, "query", "", "pre-filled answers as a key=value&... query string")
	flag.StringVar(&stateDir, "state-dir", defaultStateDir(), "directory for resumable session files")
	flag.Parse()

	if hash == "" {
		log.Fatal("respond: missing parameter -survey")
	}

	manager := session.NewManager(
		session.NewHTTPBackend(server),
		func(surveyHash string) session.Store {
			return session.NewFileStore(stateDir, surveyHash)
		},
	)

	ctx := context.Background()
	s, err := manager.Open(ctx, hash, rawQuery)
	if err != nil {
		log.Fatal("respond.open:", err)
	}

	survey := s.Survey()
	fmt.Println(survey.Title)
	fmt.Println(`(enter ":back" to change your previous answer)`)
	fmt.Println()

	in := bufio.NewScanner(os.Stdin)
	for !s.Terminal() {
		if s.State() == session.StateCollectingName {
			fmt.Print("What can we call you? ")
		} else {
			fmt.Printf("%s ", survey.Questions[s.Cursor()].Prompt)
		}
		if prev := s.Current(); prev.Value != nil && prev.Value != "" {
			fmt.Printf("[%v] ", prev.Value)
		}

		if !in.Scan() {
			return
		}
		answer := strings.TrimSpace(in.Text())

		if answer == ":back" {
			if err := s.Retreat(); err != nil {
				fmt.Println("nothing to go back to")
			}
			continue
		}
		if answer == "" {
			if prev := s.Current(); prev.Value != nil {
				answer = fmt.Sprint(prev.Value)
			}
		}

		if err := s.Advance(ctx, answer); err != nil {
			log.Fatal("respond.advance:", err)
		}
	}

	fmt.Println()
	fmt.Println("Thanks for answering!")
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".backtalk"
	}
	return filepath.Join(home, ".backtalk")
}
