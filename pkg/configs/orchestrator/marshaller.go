package orchestrator

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// load orchestrator config from a file.
//
// Misconfiguration is reported as error.
func LoadOrchestratorConfig(filepath string) (*OrchestratorConfig, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}
	return Unmarshal(content)
}

func Unmarshal(conf []byte) (out *OrchestratorConfig, err error) {
	var m *OrchestratorConfigMarshall
	if err := yaml.Unmarshal(conf, &m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("config is empty")
	}

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("misconfiguration: %v", r)
		}
	}()
	return TrySeal(m), nil
}
