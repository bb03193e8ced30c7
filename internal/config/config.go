// Package config loads the CLI's connection profile: a TOML file
// (SPEC_FULL.md §9) read with github.com/BurntSushi/toml, the way the
// teacher's internal/parser/toml package already parses TOML-formatted
// schema fixtures, with github.com/spf13/viper layering environment
// variable and flag overrides on top.
package config

import (
	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// Profile is the CLI's connection profile: db_path, paramstyle and
// nop_regexes plus stage, database/schema, listen-address and signing-key
// settings. It has no storage-mode field.
type Profile struct {
	DBPath     string   `toml:"db_path" mapstructure:"db_path"`
	StageRoot  string   `toml:"stage_root" mapstructure:"stage_root"`
	Database   string   `toml:"database" mapstructure:"database"`
	Schema     string   `toml:"schema" mapstructure:"schema"`
	ParamStyle string   `toml:"paramstyle" mapstructure:"paramstyle"`
	NopRegexes []string `toml:"nop_regexes" mapstructure:"nop_regexes"`
	ListenAddr string   `toml:"listen_addr" mapstructure:"listen_addr"`
	JWTSecret  string   `toml:"jwt_secret" mapstructure:"jwt_secret"`
}

// Default returns a Profile with the in-memory, single-tenant defaults.
func Default() Profile {
	return Profile{
		ParamStyle: "pyformat",
		Schema:     "MAIN",
		ListenAddr: ":8088",
		JWTSecret:  "fsnow-dev-secret",
	}
}

// Load reads path (if non-empty and present) as TOML into a Profile, then
// lets FSNOW_-prefixed environment variables and any flags already bound
// to v override individual fields, mirroring spec.md §9's toml+viper
// layering.
func Load(path string, v *viper.Viper) (Profile, error) {
	prof := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &prof); err != nil {
			return prof, err
		}
	}
	if v == nil {
		v = viper.New()
	}
	v.SetEnvPrefix("FSNOW")
	v.AutomaticEnv()
	v.SetDefault("db_path", prof.DBPath)
	v.SetDefault("stage_root", prof.StageRoot)
	v.SetDefault("database", prof.Database)
	v.SetDefault("schema", prof.Schema)
	v.SetDefault("paramstyle", prof.ParamStyle)
	v.SetDefault("listen_addr", prof.ListenAddr)
	v.SetDefault("jwt_secret", prof.JWTSecret)

	prof.DBPath = v.GetString("db_path")
	prof.StageRoot = v.GetString("stage_root")
	prof.Database = v.GetString("database")
	prof.Schema = v.GetString("schema")
	prof.ParamStyle = v.GetString("paramstyle")
	prof.ListenAddr = v.GetString("listen_addr")
	prof.JWTSecret = v.GetString("jwt_secret")
	return prof, nil
}
