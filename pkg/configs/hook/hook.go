// Package hook loads webhook settings of the orchestrator.
//
//	initialize:
//	  before: ["http://backend.example.com/hooks/before-start"]
//	  after:  ["http://backend.example.com/hooks/started"]
//	finishing:
//	  after:  ["http://backend.example.com/hooks/finished"]
package hook

import (
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Initialize is called around starting agents of an Execution.
	Initialize WebHook `yaml:"initialize,omitempty"`

	// Finishing is called around finishing an Execution (FINISHED or ERROR).
	Finishing WebHook `yaml:"finishing,omitempty"`
}

type WebHook struct {
	Before []*url.URL
	After  []*url.URL
}

func Load(filename string) (Config, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, err
	}
	return Unmarshal(content)
}

func Unmarshal(content []byte) (Config, error) {
	cfg := Config{}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (wh *WebHook) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Before []string `yaml:"before"`
		After  []string `yaml:"after"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	parsed := WebHook{}
	for _, u := range raw.Before {
		p, err := parseHookURL(u)
		if err != nil {
			return err
		}
		parsed.Before = append(parsed.Before, p)
	}
	for _, u := range raw.After {
		p, err := parseHookURL(u)
		if err != nil {
			return err
		}
		parsed.After = append(parsed.After, p)
	}
	*wh = parsed
	return nil
}

// parseHookURL accepts absolute http(s) URLs only.
func parseHookURL(s string) (*url.URL, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("hook url should be absolute http(s) url: %s", s)
	}
	return u, nil
}
