// Package versions fetches the latest game version metadata.
package versions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultURL is the public version manifest.
const DefaultURL = "https://launchermeta.mojang.com/mc/game/version_manifest.json"

// DefaultTimeout bounds the manifest fetch.
const DefaultTimeout = 7 * time.Second

// Info holds the latest release and snapshot ids.
type Info struct {
	Release  string `json:"release"`
	Snapshot string `json:"snapshot"`
}

type manifest struct {
	Latest Info `json:"latest"`
}

// Fetch downloads the manifest at url within timeout.
func Fetch(ctx context.Context, client *http.Client, url string, timeout time.Duration) (*Info, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("versions: build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("versions: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("versions: unexpected status %d", resp.StatusCode)
	}

	var m manifest
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("versions: decode: %w", err)
	}
	if m.Latest.Release == "" && m.Latest.Snapshot == "" {
		return nil, fmt.Errorf("versions: manifest has no latest versions")
	}
	return &m.Latest, nil
}

// String renders "release <r>, snapshot <s>".
func (i *Info) String() string {
	if i == nil {
		return "unavailable"
	}
	return fmt.Sprintf("release %s, snapshot %s", i.Release, i.Snapshot)
}
