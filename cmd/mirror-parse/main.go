package main

import (
	"bufio"
	"fmt"
	"log"
	"os"

	"mirrortrade/internal/signal"
)

// mirror-parse runs the message normalizer over stdin, one message per line.
// Useful for checking what a given alert phrasing resolves to before pointing
// a bot at the feed.
func main() {
	robot := os.Getenv("ROBOT_NAME")
	if len(os.Args) > 1 {
		robot = os.Args[1]
	}
	if robot == "" {
		log.Fatal("usage: mirror-parse <robot-name> (or set ROBOT_NAME)")
	}

	normalizer := signal.NewNormalizer(robot, nil)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		action, symbol, ok := normalizer.Parse(line)
		if !ok {
			fmt.Println("no signal")
			continue
		}
		fmt.Printf("%s %s\n", action, symbol)
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("read stdin: %v", err)
	}
}
