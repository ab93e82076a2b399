package pack

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dlg0/agent-zero/internal/agent"
	"github.com/dlg0/agent-zero/internal/assumptions"
)

// ContentHash computes the sha256 over a pack's data files in name
// order. manifest.yaml is excluded so the manifest can declare the hash
// of the files it describes; hidden files and subdirectories are
// ignored.
func ContentHash(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == "manifest.yaml" || strings.HasPrefix(name, ".") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return "", err
		}
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write(raw)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ResolvedHash covers the patched tables and catalogue actually fed to
// the clock: tables in canonical sorted order, agents in file order.
func ResolvedHash(assum, policy *assumptions.Table, agents []agent.Config) string {
	payload := struct {
		Assumptions []assumptions.Row `json:"assumptions"`
		Policy      []assumptions.Row `json:"policy"`
		Agents      []agent.Config    `json:"agents"`
	}{
		Assumptions: assum.Sorted(),
		Policy:      policy.Sorted(),
		Agents:      agents,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
