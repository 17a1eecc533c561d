package source

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/elonfeng/trendfit/pkg/signal"
)

// OrgBundle is an organization profile together with its watchlist and
// topic affinities, as imported from a file.
type OrgBundle struct {
	Profile    signal.OrganizationProfile `json:"profile" yaml:"profile"`
	Watchlist  []signal.WatchlistEntity   `json:"watchlist" yaml:"watchlist"`
	Affinities []signal.TopicAffinity     `json:"affinities" yaml:"affinities"`
}

// LoadSignals reads a list of trend signals from a .json, .yaml or .yml file.
func LoadSignals(path string) ([]signal.TrendSignal, error) {
	var sigs []signal.TrendSignal
	if err := decodeFile(path, &sigs); err != nil {
		return nil, err
	}
	for i, s := range sigs {
		if s.ID == "" {
			sigs[i].ID = SignalID(s.Title)
		}
	}
	return sigs, nil
}

// LoadOrgBundles reads one or more organization bundles. The file holds
// either a single bundle or a list of them.
func LoadOrgBundles(path string) ([]OrgBundle, error) {
	var many []OrgBundle
	if err := decodeFile(path, &many); err == nil {
		return validBundles(path, many)
	}
	var one OrgBundle
	if err := decodeFile(path, &one); err != nil {
		return nil, err
	}
	return validBundles(path, []OrgBundle{one})
}

func validBundles(path string, bundles []OrgBundle) ([]OrgBundle, error) {
	for i, b := range bundles {
		if b.Profile.ID == "" {
			return nil, fmt.Errorf("%s: organization %d has no id", path, i)
		}
	}
	return bundles, nil
}

func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, v)
	default:
		err = yaml.Unmarshal(data, v)
	}
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
