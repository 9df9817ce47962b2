// Package main generates the markdown reference for the pbipgen CLI and its
// configuration file.
//
// Usage:
//
//	go run ./scripts/gendocs -gen=cli -outdir=docs/cli
//	go run ./scripts/gendocs -gen=config -outdir=docs
//	go run ./scripts/gendocs -gen=all
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
)

var (
	genFlag    = flag.String("gen", "all", "what to generate: cli, config, all")
	outDirFlag = flag.String("outdir", "", "output directory (defaults based on gen type)")
)

func main() {
	flag.Parse()

	projectRoot, err := findProjectRoot()
	if err != nil {
		log.Fatalf("failed to find project root: %v", err)
	}
	log.Printf("Project root: %s", projectRoot)

	outDir := func(def string) string {
		if *outDirFlag != "" {
			return *outDirFlag
		}
		return filepath.Join(projectRoot, def)
	}

	switch *genFlag {
	case "cli":
		err = generateCLIDocs(outDir(filepath.Join("docs", "cli")))
	case "config":
		err = generateConfigDocs(outDir("docs"))
	case "all":
		if err = generateCLIDocs(filepath.Join(projectRoot, "docs", "cli")); err == nil {
			err = generateConfigDocs(filepath.Join(projectRoot, "docs"))
		}
	default:
		log.Fatalf("unknown -gen value: %s (use: cli, config, all)", *genFlag)
	}
	if err != nil {
		log.Fatalf("failed to generate docs: %v", err)
	}

	log.Println("Done!")
}

// findProjectRoot walks up from the current directory to find go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}
