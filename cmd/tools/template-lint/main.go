// cmd/tools/template-lint/main.go
//
// Walks a template directory, reports the tags each template carries and
// flags legacy spellings. With -heal, writes a canonical-tag copy of each
// flagged template into a separate output directory. Source templates are
// never modified in place.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"docgen-service/internal/render/linter"
)

func main() {
	dir := flag.String("dir", "templates", "Template directory to lint")
	heal := flag.Bool("heal", false, "Write healed copies with canonical tags")
	out := flag.String("out", "templates-healed", "Output directory for healed copies")
	flag.Parse()

	reports, err := linter.LintDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(reports) == 0 {
		fmt.Printf("No templates found in %s\n", *dir)
		os.Exit(0)
	}

	flagged := 0
	for _, report := range reports {
		fmt.Printf("%s\n", report.Name)
		if report.Err != nil {
			fmt.Printf("  ERROR: %v\n", report.Err)
			flagged++
			continue
		}
		for _, tag := range report.Tags {
			fmt.Printf("  {{%s}}\n", tag)
		}
		for legacy, canonical := range report.Legacy {
			fmt.Printf("  LEGACY: {{%s}} -> {{%s}}\n", legacy, canonical)
		}
		if len(report.Legacy) > 0 {
			flagged++
		}
	}

	if *heal && flagged > 0 {
		if err := os.MkdirAll(*out, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		for _, report := range reports {
			if report.Err != nil || len(report.Legacy) == 0 {
				continue
			}
			healed, err := linter.Heal(filepath.Join(*dir, report.Name))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error healing %s: %v\n", report.Name, err)
				os.Exit(1)
			}
			target := filepath.Join(*out, report.Name)
			if err := os.WriteFile(target, healed, 0o644); err != nil {
				fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", target, err)
				os.Exit(1)
			}
			fmt.Printf("Healed copy written: %s\n", target)
		}
	}

	fmt.Printf("\n%d templates checked, %d flagged\n", len(reports), flagged)
	if flagged > 0 && !*heal {
		os.Exit(2)
	}
}
