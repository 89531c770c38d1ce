// Package guildcfg owns per-guild configuration. Reads merge stored
// documents with defaults one level deep and persist the repaired result,
// so a config read never sees a missing field.
package guildcfg

import "encoding/json"

const (
	DefaultPrefix = ".."
	MaxPrefixLen  = 5
)

type AntiSpam struct {
	Enabled  bool `json:"enabled"`
	Max      int  `json:"max"`
	WindowMS int  `json:"window_ms"`
}

type WordFilter struct {
	Enabled     bool     `json:"enabled"`
	BannedWords []string `json:"banned_words"`
}

type GuildConfig struct {
	Prefix     string     `json:"prefix"`
	AntiLink   bool       `json:"antilink"`
	AntiSpam   AntiSpam   `json:"antispam"`
	WordFilter WordFilter `json:"wordfilter"`

	// Reserved for future filter scoping; persisted but not yet consulted.
	WhitelistChannels []string `json:"whitelist_channels"`
	WhitelistRoles    []string `json:"whitelist_roles"`
	WhitelistUsers    []string `json:"whitelist_users"`

	// NukeMode mirrors the safe-mode state machine; only the safe-mode
	// controller writes it.
	NukeMode bool `json:"nukemode"`

	LevelingEnabled bool   `json:"leveling_enabled"`
	ModLogChannel   string `json:"mod_log_channel"`
}

func Default() GuildConfig {
	return GuildConfig{
		Prefix:            DefaultPrefix,
		AntiLink:          false,
		AntiSpam:          AntiSpam{Enabled: true, Max: 5, WindowMS: 10000},
		WordFilter:        WordFilter{Enabled: false, BannedWords: []string{}},
		WhitelistChannels: []string{},
		WhitelistRoles:    []string{},
		WhitelistUsers:    []string{},
	}
}

func defaultDoc() map[string]any {
	data, _ := json.Marshal(Default())
	doc := map[string]any{}
	_ = json.Unmarshal(data, &doc)
	return doc
}

// mergeDefaults fills missing keys in doc from defaults, one level deep:
// object values are defaulted per sub-key, arrays and scalars only checked
// for presence. Reports whether anything was added.
func mergeDefaults(doc, defaults map[string]any) bool {
	repaired := false
	for key, def := range defaults {
		current, ok := doc[key]
		if !ok {
			doc[key] = def
			repaired = true
			continue
		}
		defObj, defIsObj := def.(map[string]any)
		if !defIsObj {
			continue
		}
		curObj, curIsObj := current.(map[string]any)
		if !curIsObj {
			doc[key] = def
			repaired = true
			continue
		}
		for sub, sv := range defObj {
			if _, ok := curObj[sub]; !ok {
				curObj[sub] = sv
				repaired = true
			}
		}
	}
	return repaired
}
