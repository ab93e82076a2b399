// packhash checks and refreshes the content hashes declared in pack
// manifests. Run it after editing any pack data file; a stale manifest
// hash fails pack validation everywhere else.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dlg0/agent-zero/internal/pack"
)

func main() {
	var (
		dataDir = flag.String("data", "data", "Data directory holding the pack trees")
		write   = flag.Bool("write", false, "Rewrite stale manifest hashes instead of just reporting them")
	)
	flag.Parse()

	fmt.Printf("Scanning packs under %s\n", *dataDir)

	total, stale := 0, 0
	for _, sub := range []string{pack.AssumptionsDir, pack.ScenariosDir} {
		t, s, err := refreshDir(filepath.Join(*dataDir, sub), *write)
		if err != nil {
			log.Fatalf("Failed to scan %s: %v", sub, err)
		}
		total += t
		stale += s
	}

	if stale > 0 && !*write {
		fmt.Printf("Checked %d packs: %d stale. Re-run with --write to update.\n", total, stale)
		os.Exit(1)
	}
	if *write {
		fmt.Printf("Checked %d packs: %d updated\n", total, stale)
	} else {
		fmt.Printf("Checked %d packs: all hashes current\n", total)
	}
}

// refreshDir recomputes the content hash of every pack under dir and,
// when write is set, rewrites manifests whose declared hash is stale.
// Returns the number of packs seen and the number found stale.
func refreshDir(dir string, write bool) (int, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, err
	}

	total, stale := 0, 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		packDir := filepath.Join(dir, entry.Name())
		man, err := pack.LoadManifest(packDir)
		if err != nil {
			fmt.Printf("  ⚠️  Skipping %s: %v\n", entry.Name(), err)
			continue
		}
		total++

		computed, err := pack.ContentHash(packDir)
		if err != nil {
			return total, stale, fmt.Errorf("%s: %w", packDir, err)
		}
		if man.Hash == computed {
			fmt.Printf("  ✓ %s (%s): hash current\n", man.Ref().ID, entry.Name())
			continue
		}

		stale++
		if !write {
			fmt.Printf("  ✗ %s (%s): manifest hash stale\n", man.Ref().ID, entry.Name())
			continue
		}

		man.Hash = computed
		if err := writeManifest(packDir, man); err != nil {
			return total, stale, fmt.Errorf("%s: %w", packDir, err)
		}
		fmt.Printf("  ✓ %s (%s): hash updated\n", man.Ref().ID, entry.Name())
	}
	return total, stale, nil
}

func writeManifest(dir string, man pack.Manifest) error {
	raw, err := yaml.Marshal(man)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "manifest.yaml"), raw, 0o644)
}
