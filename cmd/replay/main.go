// Command replay prints the snapshots recorded in a tick log directory,
// optionally cross-checking digests against the sqlite index.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"colonycraft.ai/internal/persistence/indexdb"
	"colonycraft.ai/internal/persistence/ticklog"
)

func main() {
	var (
		dataDir = flag.String("data", "data", "tick log and index directory")
		verify  = flag.Bool("verify", false, "cross-check digests against the index")
		from    = flag.Int64("from", 0, "first tick to print")
		to      = flag.Int64("to", 1<<62, "last tick to print")
	)
	flag.Parse()
	logger := log.New(os.Stderr, "replay: ", 0)

	files, err := ticklog.Files(filepath.Join(*dataDir, "ticks"))
	if err != nil {
		logger.Fatal(err)
	}
	if len(files) == 0 {
		logger.Fatal("no tick logs found")
	}

	var index *indexdb.Index
	if *verify {
		index, err = indexdb.Open(filepath.Join(*dataDir, "index.db"))
		if err != nil {
			logger.Fatal(err)
		}
		defer index.Close()
	}

	printed, mismatches := 0, 0
	for _, path := range files {
		msgs, err := ticklog.ReadFile(path)
		if err != nil {
			logger.Fatalf("%s: %v", path, err)
		}
		for _, msg := range msgs {
			if msg.Tick < *from || msg.Tick > *to {
				continue
			}
			fmt.Printf("tick %8d  p/r/c/e %d/%d/%d/%d  done %d  overflow %d  digest %s\n",
				msg.Tick, msg.Tasks.Pending, msg.Tasks.Ready, msg.Tasks.Claimed, msg.Tasks.Executing,
				msg.Completed, msg.Overflow, msg.Digest)
			printed++
			if index != nil {
				row, err := index.At(msg.Tick)
				if err != nil {
					logger.Printf("tick %d: missing from index", msg.Tick)
					mismatches++
					continue
				}
				if row.Digest != msg.Digest {
					logger.Printf("tick %d: digest mismatch log=%s index=%s", msg.Tick, msg.Digest, row.Digest)
					mismatches++
				}
			}
		}
	}

	logger.Printf("%d snapshots from %d files", printed, len(files))
	if mismatches > 0 {
		logger.Fatalf("%d mismatches", mismatches)
	}
}
