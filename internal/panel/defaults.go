package panel

import (
	"embed"
	"encoding/json"
	"fmt"
)

//go:embed data/patch-panels.json
var defaultsFS embed.FS

// defaultsFile mirrors the bundled asset's shape.
type defaultsFile struct {
	DefaultConfigurations []Configuration `json:"defaultConfigurations"`
}

// builtinDefaults is parsed once at startup. The bundle ships inside
// the binary, so a parse failure is a build defect, not a runtime
// condition.
var builtinDefaults = mustLoadDefaults()

func mustLoadDefaults() []Configuration {
	raw, err := defaultsFS.ReadFile("data/patch-panels.json")
	if err != nil {
		panic(fmt.Sprintf("bundled patch panel data missing: %v", err))
	}

	var file defaultsFile
	if err := json.Unmarshal(raw, &file); err != nil {
		panic(fmt.Sprintf("bundled patch panel data malformed: %v", err))
	}
	return file.DefaultConfigurations
}
