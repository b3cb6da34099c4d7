package main

import (
	"github.com/aluedeke/go-autosign/pkg/codesign"
	"github.com/spf13/viper"
)

// envPrefix is prepended to every configuration key, e.g. AUTOSIGN_CODESIGN.
const envPrefix = "AUTOSIGN"

type config struct {
	SecurityTool string // AUTOSIGN_SECURITY
	CodesignTool string // AUTOSIGN_CODESIGN
	LogLevel     string // AUTOSIGN_LOG_LEVEL
	Preflight    bool   // AUTOSIGN_PREFLIGHT
	P12Path      string // AUTOSIGN_P12
	P12Password  string // AUTOSIGN_P12_PASSWORD
}

// loadConfig reads the environment. There is no config file.
func loadConfig() config {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("security", codesign.DefaultSecurityTool)
	v.SetDefault("codesign", codesign.DefaultCodesignTool)
	v.SetDefault("log_level", "info")
	v.SetDefault("preflight", true)
	v.SetDefault("p12", "")
	v.SetDefault("p12_password", "")

	return config{
		SecurityTool: v.GetString("security"),
		CodesignTool: v.GetString("codesign"),
		LogLevel:     v.GetString("log_level"),
		Preflight:    v.GetBool("preflight"),
		P12Path:      v.GetString("p12"),
		P12Password:  v.GetString("p12_password"),
	}
}
