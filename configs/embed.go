// Package configs provides the embedded configuration template for lmssearch.
//
// The template is written by `lmssearch config init`, either as
// .lmssearch.yaml in the config directory or, with --user, at
// ~/.config/lmssearch/config.yaml.
//
// Configuration hierarchy (see internal/config Load):
//  1. Hardcoded defaults (config.NewConfig)
//  2. User config (~/.config/lmssearch/config.yaml)
//  3. Project config (.lmssearch.yaml)
//  4. Environment variables (LMSSEARCH_*)
package configs

import _ "embed"

// ConfigTemplate is a commented configuration file listing every setting
// with its default value.
//
//go:embed config.example.yaml
var ConfigTemplate string
